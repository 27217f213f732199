package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parcelflow/ledger"
	"parcelflow/metadata"
)

// Uploader is the slice of the content store the registrar needs. A nil
// encryption key means a public upload; a non-nil key asks the store to
// encrypt and access-control the content.
type Uploader interface {
	Upload(ctx context.Context, data []byte, encryptionKey []byte) (string, error)
}

// Submitter issues ledger operations.
type Submitter interface {
	Submit(ctx context.Context, op ledger.Operation) error
}

// RegisterParams carries everything needed to register a new parcel.
type RegisterParams struct {
	LandID     uint64
	Owner      string
	TitleNum   string
	LandType   string
	Area       float64
	AreaUnit   string
	PriceHuman string
	Registrant string

	// Deed is the legal document body; DeedKey encrypts it in the store.
	Deed    []byte
	DeedKey []byte
}

// RegisterResult reports the CIDs the ledger now points at.
type RegisterResult struct {
	MetadataCID string
	DocumentCID string
}

// Registrar uploads a parcel's documents and submits the register
// operation. Uploads happen first so the ledger record never points at
// content that does not exist.
type Registrar struct {
	store  Uploader
	ledger Submitter
	now    func() time.Time
}

func NewRegistrar(store Uploader, submitter Submitter) *Registrar {
	return &Registrar{
		store:  store,
		ledger: submitter,
		now:    time.Now,
	}
}

// Register uploads the encrypted deed, then the public metadata document
// referencing it, then submits the ledger register operation. Any failure
// aborts before the ledger call, leaving only orphaned store content
// (harmless: unreferenced CIDs are simply never resolved).
func (r *Registrar) Register(ctx context.Context, params RegisterParams) (RegisterResult, error) {
	if params.Owner == "" {
		return RegisterResult{}, fmt.Errorf("registry: register parcel %d: owner required", params.LandID)
	}
	if params.TitleNum == "" {
		return RegisterResult{}, fmt.Errorf("registry: register parcel %d: title number required", params.LandID)
	}
	if len(params.Deed) == 0 {
		return RegisterResult{}, fmt.Errorf("registry: register parcel %d: deed document required", params.LandID)
	}

	docCID, err := r.store.Upload(ctx, params.Deed, params.DeedKey)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("registry: upload deed for parcel %d: %w", params.LandID, err)
	}

	doc := metadata.ParcelMetadata{
		TitleNumber:  params.TitleNum,
		LandType:     params.LandType,
		DeclaredArea: params.Area,
		AreaUnit:     params.AreaUnit,
		PriceHuman:   params.PriceHuman,
		Registrant:   params.Registrant,
		CreatedAt:    r.now().UTC(),
		DocumentCID:  docCID,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("registry: marshal metadata for parcel %d: %w", params.LandID, err)
	}

	metaCID, err := r.store.Upload(ctx, body, nil)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("registry: upload metadata for parcel %d: %w", params.LandID, err)
	}

	op := ledger.Operation{
		Kind:        ledger.OpRegister,
		LandID:      params.LandID,
		Caller:      params.Owner,
		MetadataCID: metaCID,
		DocumentCID: docCID,
	}
	if err := r.ledger.Submit(ctx, op); err != nil {
		return RegisterResult{}, fmt.Errorf("registry: submit register for parcel %d: %w", params.LandID, err)
	}

	return RegisterResult{MetadataCID: metaCID, DocumentCID: docCID}, nil
}
