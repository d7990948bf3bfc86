package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"medication-adherence/internal/domain/medications"
)

func TestMedicationsStore_OwnershipAndConstraints(t *testing.T) {
	s := NewMedicationsStore()
	ctx := context.Background()

	m, err := s.InsertMedication(ctx, "u1", medications.NewMedication{Name: "Aspirin", Dosage: "100mg", Frequency: medications.FrequencyOnceDaily})
	if err != nil {
		t.Fatalf("InsertMedication error: %v", err)
	}

	if _, err := s.InsertMedication(ctx, "u1", medications.NewMedication{Name: "aspirin", Dosage: "50mg", Frequency: medications.FrequencyWeekly}); !errors.Is(err, medications.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}
	// otro usuario puede usar el mismo nombre
	if _, err := s.InsertMedication(ctx, "u2", medications.NewMedication{Name: "Aspirin", Dosage: "1", Frequency: medications.FrequencyAsNeeded}); err != nil {
		t.Fatalf("expected names to be unique per user only, got %v", err)
	}

	if _, err := s.InsertDoseLog(ctx, "u2", medications.NewDoseLog{MedicationID: m.ID}); !errors.Is(err, medications.ErrNotFound) {
		t.Fatalf("expected ErrNotFound logging someone else's medication, got %v", err)
	}
	if err := s.DeleteMedication(ctx, m.ID, "u2"); !errors.Is(err, medications.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting someone else's medication, got %v", err)
	}

	taken := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	l, err := s.InsertDoseLog(ctx, "u1", medications.NewDoseLog{MedicationID: m.ID, TakenAt: &taken})
	if err != nil {
		t.Fatalf("InsertDoseLog error: %v", err)
	}
	if l.TakenAt != "2024-01-30T08:00:00Z" {
		t.Fatalf("unexpected taken_at %q", l.TakenAt)
	}

	if err := s.DeleteMedication(ctx, m.ID, "u1"); !errors.Is(err, medications.ErrReferenced) {
		t.Fatalf("expected ErrReferenced deleting a medication with logs, got %v", err)
	}

	items, err := s.ListMedications(ctx, "u1")
	if err != nil {
		t.Fatalf("ListMedications error: %v", err)
	}
	if len(items) != 1 || len(items[0].Logs) != 1 {
		t.Fatalf("expected 1 medication with 1 log, got %#v", items)
	}
}

func TestMedicationsStore_ListNewestFirst(t *testing.T) {
	s := NewMedicationsStore()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"A", "B", "C"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		if _, err := s.InsertMedication(ctx, "u1", medications.NewMedication{Name: name, Dosage: "1", Frequency: medications.FrequencyOnceDaily}); err != nil {
			t.Fatalf("InsertMedication error: %v", err)
		}
	}

	items, _ := s.ListMedications(ctx, "u1")
	if len(items) != 3 || items[0].Name != "C" || items[2].Name != "A" {
		t.Fatalf("expected newest first, got %v %v %v", items[0].Name, items[1].Name, items[2].Name)
	}
}

func TestMedicationsStore_UpdateScopedToOwner(t *testing.T) {
	s := NewMedicationsStore()
	ctx := context.Background()

	m, _ := s.InsertMedication(ctx, "u1", medications.NewMedication{Name: "A", Dosage: "1", Frequency: medications.FrequencyOnceDaily})
	_, _ = s.InsertMedication(ctx, "u1", medications.NewMedication{Name: "B", Dosage: "1", Frequency: medications.FrequencyOnceDaily})

	dosage := "2"
	if _, err := s.UpdateMedication(ctx, m.ID, "u2", medications.MedicationUpdate{Dosage: &dosage}); !errors.Is(err, medications.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	name := "B"
	if _, err := s.UpdateMedication(ctx, m.ID, "u1", medications.MedicationUpdate{Name: &name}); !errors.Is(err, medications.ErrConflict) {
		t.Fatalf("expected ErrConflict renaming onto an existing name, got %v", err)
	}

	updated, err := s.UpdateMedication(ctx, m.ID, "u1", medications.MedicationUpdate{Dosage: &dosage})
	if err != nil {
		t.Fatalf("UpdateMedication error: %v", err)
	}
	if updated.Dosage != "2" || updated.Name != "A" {
		t.Fatalf("unexpected update result %#v", updated)
	}
}
