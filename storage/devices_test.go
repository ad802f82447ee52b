package storage

import (
	"context"
	"testing"
	"time"
)

func TestSummarizeDevice_StatusPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all available", []string{CloneStatusAvailable, CloneStatusAvailable}, CloneStatusAvailable},
		{"logged in wins over available", []string{CloneStatusAvailable, CloneStatusLoggedIn}, CloneStatusLoggedIn},
		{"maintenance wins over logged in", []string{CloneStatusLoggedIn, CloneStatusMaintenance}, CloneStatusMaintenance},
		{"broken wins over everything", []string{CloneStatusMaintenance, CloneStatusLoggedIn, CloneStatusBroken}, CloneStatusBroken},
		{"assigned counts as available-level", []string{CloneStatusAssigned}, CloneStatusAvailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clones := make([]*Clone, len(tt.statuses))
			for i, status := range tt.statuses {
				clones[i] = &Clone{DeviceID: "dev", CloneNumber: i + 1, CloneStatus: status}
			}
			summary := summarizeDevice("dev", clones)
			if summary.DeviceStatus != tt.want {
				t.Errorf("DeviceStatus = %q, want %q", summary.DeviceStatus, tt.want)
			}
		})
	}
}

func TestSummarizeDevice_CountsAndLastScanned(t *testing.T) {
	t.Parallel()

	older := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	clones := []*Clone{
		{DeviceID: "dev", CloneNumber: 1, CloneStatus: CloneStatusAvailable, CloneHealth: "good", DeviceName: "Phone 1", LastScanned: &older},
		{DeviceID: "dev", CloneNumber: 2, CloneStatus: CloneStatusAssigned, LastScanned: &newer},
		{DeviceID: "dev", CloneNumber: 3, CloneStatus: CloneStatusLoggedIn},
		{DeviceID: "dev", CloneNumber: 4, CloneStatus: CloneStatusBroken},
	}

	summary := summarizeDevice("dev", clones)
	if summary.TotalClones != 4 {
		t.Errorf("TotalClones = %d, want 4", summary.TotalClones)
	}
	if summary.AvailableClones != 1 || summary.AssignedClones != 1 ||
		summary.LoggedInClones != 1 || summary.BrokenClones != 1 {
		t.Errorf("counts = %d/%d/%d/%d, want 1/1/1/1",
			summary.AvailableClones, summary.AssignedClones,
			summary.LoggedInClones, summary.BrokenClones)
	}
	if summary.DeviceName != "Phone 1" || summary.DeviceHealth != "good" {
		t.Errorf("metadata from first clone not applied: %q/%q", summary.DeviceName, summary.DeviceHealth)
	}
	if summary.LastScanned == nil || !summary.LastScanned.Equal(newer) {
		t.Errorf("LastScanned = %v, want max %v", summary.LastScanned, newer)
	}
}

func TestCapacityFor_EfficiencyScoring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		summary        DeviceSummary
		wantUtil       float64
		wantEfficiency float64
	}{
		{
			// 100 base + 10 free slots; utilization 0 is outside the bonus band.
			name: "idle healthy device clamps to 100",
			summary: DeviceSummary{
				TotalClones: 4, AvailableClones: 4, DeviceStatus: CloneStatusAvailable,
			},
			wantUtil:       0,
			wantEfficiency: 100,
		},
		{
			// 100 + 10 (free) + 5 (50% utilization) = 115 clamped to 100.
			name: "balanced device clamps to 100",
			summary: DeviceSummary{
				TotalClones: 4, AvailableClones: 2, AssignedClones: 2, DeviceStatus: CloneStatusAvailable,
			},
			wantUtil:       50,
			wantEfficiency: 100,
		},
		{
			// 100 - 50 (broken) + 10 (free) + 5 (50% util) - 12.5 (broken rate) = 52.5
			name: "broken device penalized",
			summary: DeviceSummary{
				TotalClones: 4, AvailableClones: 1, AssignedClones: 2, BrokenClones: 1,
				DeviceStatus: CloneStatusBroken,
			},
			wantUtil:       50,
			wantEfficiency: 52.5,
		},
		{
			// 100 - 30 (maintenance) + 5 (50% util), no free slots = 75
			name: "maintenance device penalized",
			summary: DeviceSummary{
				TotalClones: 2, AssignedClones: 1, DeviceStatus: CloneStatusMaintenance,
			},
			wantUtil:       50,
			wantEfficiency: 75,
		},
		{
			// 100 - 50 - 50 (all broken) = 0 floor.
			name: "fully broken floors at zero",
			summary: DeviceSummary{
				TotalClones: 2, BrokenClones: 2, DeviceStatus: CloneStatusBroken,
			},
			wantUtil:       0,
			wantEfficiency: 0,
		},
		{
			name:           "no clones",
			summary:        DeviceSummary{DeviceStatus: CloneStatusAvailable},
			wantUtil:       0,
			wantEfficiency: 100,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			capacity := capacityFor(tt.summary)
			if capacity.UtilizationRate != tt.wantUtil {
				t.Errorf("UtilizationRate = %v, want %v", capacity.UtilizationRate, tt.wantUtil)
			}
			if capacity.Efficiency != tt.wantEfficiency {
				t.Errorf("Efficiency = %v, want %v", capacity.Efficiency, tt.wantEfficiency)
			}
		})
	}
}

func TestSortByCapacity(t *testing.T) {
	t.Parallel()

	devices := []DeviceCapacity{
		{DeviceSummary: DeviceSummary{DeviceID: "c", AvailableClones: 1}, Efficiency: 80},
		{DeviceSummary: DeviceSummary{DeviceID: "b", AvailableClones: 3}, Efficiency: 95},
		{DeviceSummary: DeviceSummary{DeviceID: "a", AvailableClones: 1}, Efficiency: 95},
		{DeviceSummary: DeviceSummary{DeviceID: "d", AvailableClones: 3}, Efficiency: 95},
	}
	sortByCapacity(devices)

	want := []string{"b", "d", "a", "c"}
	for i, id := range want {
		if devices[i].DeviceID != id {
			t.Errorf("position %d = %s, want %s", i, devices[i].DeviceID, id)
		}
	}
}

func TestDeviceSummariesAndStats(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	seedClone(t, store, "deviceA", 1, CloneStatusAvailable)
	seedClone(t, store, "deviceA", 2, CloneStatusAssigned)
	seedClone(t, store, "deviceB", 1, CloneStatusBroken)
	seedClone(t, store, "deviceB", 2, CloneStatusAvailable)
	seedClone(t, store, "deviceC", 1, CloneStatusMaintenance)

	summaries, err := store.DeviceSummaries(ctx)
	if err != nil {
		t.Fatalf("DeviceSummaries() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("got %d summaries, want 3", len(summaries))
	}
	// Sorted by device ID.
	if summaries[0].DeviceID != "deviceA" || summaries[2].DeviceID != "deviceC" {
		t.Errorf("summary order = [%s %s %s]", summaries[0].DeviceID, summaries[1].DeviceID, summaries[2].DeviceID)
	}
	if summaries[1].DeviceStatus != CloneStatusBroken {
		t.Errorf("deviceB status = %q, want Broken", summaries[1].DeviceStatus)
	}

	stats, err := store.GetDeviceStats(ctx)
	if err != nil {
		t.Fatalf("GetDeviceStats() error = %v", err)
	}
	if stats.TotalDevices != 3 {
		t.Errorf("TotalDevices = %d, want 3", stats.TotalDevices)
	}
	if stats.TotalClones != 5 {
		t.Errorf("TotalClones = %d, want 5", stats.TotalClones)
	}
	if stats.BrokenDevices != 1 {
		t.Errorf("BrokenDevices = %d, want 1", stats.BrokenDevices)
	}
	if stats.MaintenanceDevices != 1 {
		t.Errorf("MaintenanceDevices = %d, want 1", stats.MaintenanceDevices)
	}

	single, err := store.DeviceSummary(ctx, "deviceA")
	if err != nil {
		t.Fatalf("DeviceSummary() error = %v", err)
	}
	if single == nil || single.TotalClones != 2 {
		t.Errorf("DeviceSummary(deviceA) = %+v, want 2 clones", single)
	}

	missing, err := store.DeviceSummary(ctx, "deviceZ")
	if err != nil {
		t.Fatalf("DeviceSummary(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("DeviceSummary(missing) = %+v, want nil", missing)
	}
}

func TestGetCapacityAnalysis_RanksBrokenDevicesLast(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	// deviceA carries a broken clone; deviceB is clean with the same free
	// capacity plus one. deviceB must outrank deviceA.
	seedClone(t, store, "deviceA", 1, CloneStatusBroken)
	seedClone(t, store, "deviceA", 2, CloneStatusAvailable)
	seedClone(t, store, "deviceA", 3, CloneStatusAvailable)
	seedClone(t, store, "deviceB", 1, CloneStatusAvailable)
	seedClone(t, store, "deviceB", 2, CloneStatusAvailable)
	seedClone(t, store, "deviceB", 3, CloneStatusAvailable)

	analysis, err := store.GetCapacityAnalysis(ctx)
	if err != nil {
		t.Fatalf("GetCapacityAnalysis() error = %v", err)
	}
	if len(analysis.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(analysis.Devices))
	}
	if analysis.Devices[0].DeviceID != "deviceB" {
		t.Errorf("top ranked = %s, want deviceB", analysis.Devices[0].DeviceID)
	}
	if analysis.Devices[0].Efficiency <= analysis.Devices[1].Efficiency {
		t.Errorf("efficiency order broken: %v <= %v",
			analysis.Devices[0].Efficiency, analysis.Devices[1].Efficiency)
	}
	if analysis.Stats.TotalDevices != 2 || analysis.Stats.BrokenClones != 1 {
		t.Errorf("stats = %+v", analysis.Stats)
	}
}
