// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StageID identifies one of the fixed, ordered paper authoring stages.
// The catalog order lives in internal/stage; IDs follow the Indonesian
// stage names used throughout the product.
type StageID string

const (
	StageGagasan         StageID = "gagasan"
	StageTopik           StageID = "topik"
	StageJudul           StageID = "judul"
	StageOutline         StageID = "outline"
	StagePendahuluan     StageID = "pendahuluan"
	StageTinjauanPustaka StageID = "tinjauan_pustaka"
	StageMetodologi      StageID = "metodologi"
	StageHasil           StageID = "hasil"
	StagePembahasan      StageID = "pembahasan"
	StageKesimpulan      StageID = "kesimpulan"
	StageAbstrak         StageID = "abstrak"
	StageDaftarPustaka   StageID = "daftar_pustaka"
	StageFinalisasi      StageID = "finalisasi"

	// StageCompleted is the terminal pseudo-stage reached after finalisasi
	// is approved. It is a valid CurrentStage value but not a catalog entry.
	StageCompleted StageID = "completed"
)

// StageStatus is the workflow status of the current stage.
type StageStatus string

const (
	StatusDrafting          StageStatus = "drafting"
	StatusPendingValidation StageStatus = "pending_validation"
	StatusRevision          StageStatus = "revision"

	// StatusApproved is transient bookkeeping: it is only observable on a
	// session whose CurrentStage is StageCompleted.
	StatusApproved StageStatus = "approved"
)
