package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
)

// MemberRef identifies a member resolved through the identity collaborator.
type MemberRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// InstructorRef identifies an instructor resolved through the identity collaborator.
type InstructorRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// IdentityDirectory is the narrow interface consumed from the identity and
// authorization collaborator.
type IdentityDirectory interface {
	IsStaff(ctx context.Context, userID string) (bool, error)
	ResolveMember(ctx context.Context, userID string) (*MemberRef, error)
	ResolveInstructor(ctx context.Context, userID string) (*InstructorRef, error)
}

// StudioDirectory answers existence checks against the location and modality
// directory collaborator.
type StudioDirectory interface {
	LocationExists(ctx context.Context, id string) (bool, error)
	ModalityExists(ctx context.Context, id string) (bool, error)
}

// BillingPlans is consulted, never enforced, for make-up credit eligibility.
type BillingPlans interface {
	HasMakeupCredit(ctx context.Context, memberID string) (bool, error)
}

type identityUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// userIdentity adapts the users table to the IdentityDirectory contract.
type userIdentity struct {
	users identityUserReader
}

// NewUserIdentity builds an IdentityDirectory backed by the user repository.
func NewUserIdentity(users identityUserReader) IdentityDirectory {
	return &userIdentity{users: users}
}

func (d *userIdentity) IsStaff(ctx context.Context, userID string) (bool, error) {
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return user.Active && user.Role.Staff(), nil
}

func (d *userIdentity) ResolveMember(ctx context.Context, userID string) (*MemberRef, error) {
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, sql.ErrNoRows
	}
	return &MemberRef{ID: user.ID, FullName: user.FullName}, nil
}

func (d *userIdentity) ResolveInstructor(ctx context.Context, userID string) (*InstructorRef, error) {
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active || !user.Role.Staff() {
		return nil, sql.ErrNoRows
	}
	return &InstructorRef{ID: user.ID, FullName: user.FullName}, nil
}

// configDirectory is a StudioDirectory seeded from configuration. An empty
// list allows every id, which keeps development setups unblocked.
type configDirectory struct {
	locations  map[string]struct{}
	modalities map[string]struct{}
}

// NewConfigDirectory builds a StudioDirectory from the catalog configuration.
func NewConfigDirectory(cfg config.CatalogConfig) StudioDirectory {
	d := &configDirectory{
		locations:  make(map[string]struct{}, len(cfg.Locations)),
		modalities: make(map[string]struct{}, len(cfg.Modalities)),
	}
	for _, id := range cfg.Locations {
		d.locations[id] = struct{}{}
	}
	for _, id := range cfg.Modalities {
		d.modalities[id] = struct{}{}
	}
	return d
}

func (d *configDirectory) LocationExists(ctx context.Context, id string) (bool, error) {
	if len(d.locations) == 0 {
		return id != "", nil
	}
	_, ok := d.locations[id]
	return ok, nil
}

func (d *configDirectory) ModalityExists(ctx context.Context, id string) (bool, error) {
	if len(d.modalities) == 0 {
		return id != "", nil
	}
	_, ok := d.modalities[id]
	return ok, nil
}

// grantAllBilling is the default BillingPlans adapter until the sales system
// exposes a real endpoint. It reports every member as credit-eligible.
type grantAllBilling struct{}

// NewGrantAllBilling returns the permissive billing adapter.
func NewGrantAllBilling() BillingPlans {
	return grantAllBilling{}
}

func (grantAllBilling) HasMakeupCredit(ctx context.Context, memberID string) (bool, error) {
	return true, nil
}
