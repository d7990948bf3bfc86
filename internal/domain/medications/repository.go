package medications

import "context"

// Store es el puerto hacia el servicio de datos hospedado.
// Todas las operaciones están acotadas al dueño (userID).
type Store interface {
	ListMedications(ctx context.Context, userID string) ([]MedicationWithLogs, error)
	InsertMedication(ctx context.Context, userID string, in NewMedication) (Medication, error)
	UpdateMedication(ctx context.Context, id, userID string, fields MedicationUpdate) (Medication, error)
	DeleteMedication(ctx context.Context, id, userID string) error
	InsertDoseLog(ctx context.Context, userID string, in NewDoseLog) (DoseLog, error)
}
