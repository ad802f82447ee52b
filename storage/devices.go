package storage

import (
	"context"
	"math"
	"sort"
)

// summarizeDevice rolls a device's clone rows into one summary. Status
// precedence is Broken > Maintenance > LoggedIn > Available; health is copied
// from the first clone; last_scanned is the max across clones.
func summarizeDevice(deviceID string, clones []*Clone) DeviceSummary {
	summary := DeviceSummary{DeviceID: deviceID}

	hasMaintenance := false
	for i, clone := range clones {
		if i == 0 {
			summary.DeviceName = clone.DeviceName
			summary.DeviceHealth = clone.CloneHealth
		}
		summary.TotalClones++

		switch clone.CloneStatus {
		case CloneStatusAvailable:
			summary.AvailableClones++
		case CloneStatusAssigned:
			summary.AssignedClones++
		case CloneStatusLoggedIn:
			summary.LoggedInClones++
		case CloneStatusBroken:
			summary.BrokenClones++
		case CloneStatusMaintenance:
			hasMaintenance = true
		}

		if clone.LastScanned != nil {
			if summary.LastScanned == nil || clone.LastScanned.After(*summary.LastScanned) {
				summary.LastScanned = clone.LastScanned
			}
		}
	}

	switch {
	case summary.BrokenClones > 0:
		summary.DeviceStatus = CloneStatusBroken
	case hasMaintenance:
		summary.DeviceStatus = CloneStatusMaintenance
	case summary.LoggedInClones > 0:
		summary.DeviceStatus = CloneStatusLoggedIn
	default:
		summary.DeviceStatus = CloneStatusAvailable
	}

	return summary
}

// capacityFor computes the utilization rate and efficiency score for a device
// summary. Efficiency starts at 100, is penalized for broken/maintenance
// state, rewarded for free slots and a healthy utilization band, reduced by
// the broken-clone rate, then clamped to [0,100] and rounded to 2 decimals.
func capacityFor(summary DeviceSummary) DeviceCapacity {
	capacity := DeviceCapacity{DeviceSummary: summary}

	if summary.TotalClones > 0 {
		used := float64(summary.AssignedClones + summary.LoggedInClones)
		capacity.UtilizationRate = round2(used / float64(summary.TotalClones) * 100)
	}

	efficiency := 100.0
	switch summary.DeviceStatus {
	case CloneStatusBroken:
		efficiency -= 50
	case CloneStatusMaintenance:
		efficiency -= 30
	}
	if summary.AvailableClones > 0 {
		efficiency += 10
	}
	if capacity.UtilizationRate > 10 && capacity.UtilizationRate < 90 {
		efficiency += 5
	}
	if summary.TotalClones > 0 {
		brokenRate := float64(summary.BrokenClones) / float64(summary.TotalClones) * 100
		efficiency -= brokenRate * 0.5
	}

	if efficiency < 0 {
		efficiency = 0
	}
	if efficiency > 100 {
		efficiency = 100
	}
	capacity.Efficiency = round2(efficiency)

	return capacity
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// groupClonesByDevice loads all clone rows and buckets them by device,
// returning the sorted device IDs alongside.
func (s *BaseStore) groupClonesByDevice(ctx context.Context) (map[string][]*Clone, []string, error) {
	clones, err := s.ListClones(ctx, Filter{}, nil, 0, 0)
	if err != nil {
		return nil, nil, err
	}

	byDevice := make(map[string][]*Clone)
	for _, clone := range clones {
		byDevice[clone.DeviceID] = append(byDevice[clone.DeviceID], clone)
	}

	deviceIDs := make([]string, 0, len(byDevice))
	for id := range byDevice {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	return byDevice, deviceIDs, nil
}

// DeviceSummaries computes per-device rollups for the whole fleet.
func (s *BaseStore) DeviceSummaries(ctx context.Context) ([]DeviceSummary, error) {
	byDevice, deviceIDs, err := s.groupClonesByDevice(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]DeviceSummary, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		summaries = append(summaries, summarizeDevice(id, byDevice[id]))
	}
	return summaries, nil
}

// DeviceSummary computes the rollup for one device. Returns nil when the
// device has no clones.
func (s *BaseStore) DeviceSummary(ctx context.Context, deviceID string) (*DeviceSummary, error) {
	clones, err := s.ListClones(ctx, Filter{Conds: []Cond{Eq("deviceId", deviceID)}}, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(clones) == 0 {
		return nil, nil
	}

	summary := summarizeDevice(deviceID, clones)
	return &summary, nil
}

// GetDeviceStats aggregates fleet-wide totals across all devices.
func (s *BaseStore) GetDeviceStats(ctx context.Context) (*DeviceStats, error) {
	summaries, err := s.DeviceSummaries(ctx)
	if err != nil {
		return nil, err
	}
	stats := statsFromSummaries(summaries)
	return &stats, nil
}

func statsFromSummaries(summaries []DeviceSummary) DeviceStats {
	var stats DeviceStats
	var utilizationSum float64

	for _, summary := range summaries {
		stats.TotalDevices++
		stats.TotalClones += summary.TotalClones
		stats.AvailableClones += summary.AvailableClones
		stats.AssignedClones += summary.AssignedClones
		stats.LoggedInClones += summary.LoggedInClones
		stats.BrokenClones += summary.BrokenClones
		switch summary.DeviceStatus {
		case CloneStatusBroken:
			stats.BrokenDevices++
		case CloneStatusMaintenance:
			stats.MaintenanceDevices++
		}
		utilizationSum += capacityFor(summary).UtilizationRate
	}

	if stats.TotalDevices > 0 {
		stats.AvgUtilization = round2(utilizationSum / float64(stats.TotalDevices))
	}
	return stats
}

// GetCapacityAnalysis returns per-device capacity scoring plus fleet totals,
// with devices ordered by efficiency descending; available clones and device
// ID break ties.
func (s *BaseStore) GetCapacityAnalysis(ctx context.Context) (*CapacityAnalysis, error) {
	summaries, err := s.DeviceSummaries(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceCapacity, 0, len(summaries))
	for _, summary := range summaries {
		devices = append(devices, capacityFor(summary))
	}
	sortByCapacity(devices)

	return &CapacityAnalysis{
		Devices: devices,
		Stats:   statsFromSummaries(summaries),
	}, nil
}

// sortByCapacity ranks devices best-first: efficiency descending, then more
// available clones, then device ID ascending for a stable order.
func sortByCapacity(devices []DeviceCapacity) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Efficiency != devices[j].Efficiency {
			return devices[i].Efficiency > devices[j].Efficiency
		}
		if devices[i].AvailableClones != devices[j].AvailableClones {
			return devices[i].AvailableClones > devices[j].AvailableClones
		}
		return devices[i].DeviceID < devices[j].DeviceID
	})
}
