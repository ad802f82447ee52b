package storage

import (
	"context"
	"fmt"
	"sort"
)

// PlanAssignments produces a non-committing pairing plan for the given
// accounts using the named strategy. Callers are expected to pass existing,
// Unused, unassigned accounts; the plan never contains more pairings than
// min(len(accounts), available clones). Read-only: no writes are issued.
func (s *BaseStore) PlanAssignments(ctx context.Context, accountIDs []int64, strategy string) ([]Assignment, error) {
	if strategy == "" {
		strategy = StrategyCapacityBased
	}
	switch strategy {
	case StrategyRoundRobin, StrategyFillFirst, StrategyCapacityBased:
	default:
		return nil, fmt.Errorf("unknown allocation strategy %q", strategy)
	}

	if len(accountIDs) == 0 {
		return nil, nil
	}

	accounts, err := s.ListAccounts(ctx,
		Filter{Conds: []Cond{InInt64("id", accountIDs)}}, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	// Preserve the caller's input order; the filter returns rows by id.
	byID := make(map[int64]*Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	ordered := make([]*Account, 0, len(accounts))
	for _, id := range accountIDs {
		if account, ok := byID[id]; ok {
			ordered = append(ordered, account)
		}
	}

	available, err := s.ListClones(ctx,
		Filter{Conds: []Cond{Eq("cloneStatus", CloneStatusAvailable)}},
		[]OrderBy{{Field: "deviceId"}, {Field: "cloneNumber"}}, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, nil
	}

	switch strategy {
	case StrategyRoundRobin:
		return planRoundRobin(ordered, available), nil
	case StrategyFillFirst:
		return planFillFirst(ordered, available), nil
	default:
		// Capacity ranking looks at the whole fleet, broken clones included,
		// not just the allocatable slice.
		analysis, err := s.GetCapacityAnalysis(ctx)
		if err != nil {
			return nil, err
		}
		return planCapacityBased(ordered, available, analysis.Devices), nil
	}
}

func pairingFor(account *Account, clone *Clone) Assignment {
	return Assignment{
		AccountID:   account.ID,
		Username:    account.InstagramUsername,
		DeviceID:    clone.DeviceID,
		CloneNumber: clone.CloneNumber,
		PackageName: clone.PackageName,
	}
}

// planRoundRobin rotates a device pointer across the distinct devices (sorted
// ascending). For each account it scans up to len(devices) devices starting at
// the pointer for one with a free clone, takes the first found, and advances
// the pointer by one device whether or not the scan hit. Accounts that find no
// free clone within the scan get no pairing.
func planRoundRobin(accounts []*Account, available []*Clone) []Assignment {
	byDevice := make(map[string][]*Clone)
	for _, clone := range available {
		byDevice[clone.DeviceID] = append(byDevice[clone.DeviceID], clone)
	}
	devices := make([]string, 0, len(byDevice))
	for id := range byDevice {
		devices = append(devices, id)
	}
	sort.Strings(devices)
	if len(devices) == 0 {
		return nil
	}

	var plan []Assignment
	pointer := 0
	for _, account := range accounts {
		for scanned := 0; scanned < len(devices); scanned++ {
			deviceID := devices[(pointer+scanned)%len(devices)]
			clones := byDevice[deviceID]
			if len(clones) == 0 {
				continue
			}
			plan = append(plan, pairingFor(account, clones[0]))
			byDevice[deviceID] = clones[1:]
			break
		}
		pointer = (pointer + 1) % len(devices)
	}
	return plan
}

// planFillFirst zips accounts in input order with clones sorted by
// (device_id, clone_number), truncated to the shorter list. A pure function of
// its inputs: repeated calls with unchanged state produce identical plans.
func planFillFirst(accounts []*Account, available []*Clone) []Assignment {
	n := len(accounts)
	if len(available) < n {
		n = len(available)
	}

	plan := make([]Assignment, 0, n)
	for i := 0; i < n; i++ {
		plan = append(plan, pairingFor(accounts[i], available[i]))
	}
	return plan
}

// planCapacityBased walks devices best-ranked first (efficiency descending,
// then available clones, then device ID), draining each device's available
// clones (lowest clone number first) into the next unpaired accounts before
// moving to the next device.
func planCapacityBased(accounts []*Account, available []*Clone, ranked []DeviceCapacity) []Assignment {
	byDevice := make(map[string][]*Clone)
	for _, clone := range available {
		byDevice[clone.DeviceID] = append(byDevice[clone.DeviceID], clone)
	}

	var plan []Assignment
	next := 0
	for _, device := range ranked {
		if next >= len(accounts) {
			break
		}
		clones := byDevice[device.DeviceID]
		sort.Slice(clones, func(i, j int) bool { return clones[i].CloneNumber < clones[j].CloneNumber })
		for _, clone := range clones {
			if next >= len(accounts) {
				break
			}
			plan = append(plan, pairingFor(accounts[next], clone))
			next++
		}
	}
	return plan
}
