package service

import (
	"context"
	"fmt"
	"time"

	"tenantdesk/server/common/log"
	"tenantdesk/server/domain"
)

// TenantDirectory resolves inbound senders to tenant records. Unknown
// senders get a placeholder profile so no inbound contact is ever
// dropped for lack of an identity; placeholders carry a synthetic unit
// number and land on the default property for later reconciliation.
type TenantDirectory struct {
	store Store
}

func NewTenantDirectory(store Store) *TenantDirectory {
	return &TenantDirectory{store: store}
}

func (d *TenantDirectory) FindByPhone(ctx context.Context, phone string) (domain.Tenant, error) {
	return d.store.GetTenantByPhone(ctx, phone)
}

func (d *TenantDirectory) FindByEmail(ctx context.Context, email string) (domain.Tenant, error) {
	return d.store.GetTenantByEmail(ctx, email)
}

// ResolveByPhone returns the tenant for phone, creating a placeholder
// when none exists. The created flag reports whether a placeholder was
// minted by this call.
func (d *TenantDirectory) ResolveByPhone(ctx context.Context, phone string) (domain.Tenant, bool, error) {
	template, err := d.placeholder(ctx, "Tenant ("+phone+")")
	if err != nil {
		return domain.Tenant{}, false, err
	}
	tenant, created, err := d.store.FindOrCreateTenantByPhone(ctx, phone, template)
	if created {
		log.Infof("created placeholder tenant %d for unknown phone %s", tenant.ID, phone)
	}
	return tenant, created, err
}

func (d *TenantDirectory) ResolveByEmail(ctx context.Context, email string) (domain.Tenant, bool, error) {
	template, err := d.placeholder(ctx, "Tenant ("+email+")")
	if err != nil {
		return domain.Tenant{}, false, err
	}
	tenant, created, err := d.store.FindOrCreateTenantByEmail(ctx, email, template)
	if created {
		log.Infof("created placeholder tenant %d for unknown email %s", tenant.ID, email)
	}
	return tenant, created, err
}

func (d *TenantDirectory) placeholder(ctx context.Context, name string) (domain.Tenant, error) {
	propertyID := 0
	properties, err := d.store.ListProperties(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	if len(properties) > 0 {
		propertyID = properties[0].ID
	}
	return domain.Tenant{
		Name:       name,
		PropertyID: propertyID,
		UnitNumber: fmt.Sprintf("TMP-%d", time.Now().Unix()%100000),
	}, nil
}
