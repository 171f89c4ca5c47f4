package repository

import (
	"context"
	"time"

	"tenantdesk/server/domain"
)

// SeedDemoData loads the demo dataset into the memory store: one
// manager, three properties, four tenants, four open messages. Used
// when the service runs without a database.
func SeedDemoData(ctx context.Context, s *MemoryStore) error {
	manager, err := s.CreateUser(ctx, domain.User{
		Username: "admin",
		FullName: "Sarah Johnson",
		Email:    "sarah@example.com",
		Role:     "property_manager",
	})
	if err != nil {
		return err
	}

	propertySpecs := []domain.Property{
		{Name: "Sunset Apartments", Address: "123 Sunset Blvd, Los Angeles, CA 90028", UserID: manager.ID},
		{Name: "Oakwood Heights", Address: "456 Oak Street, San Francisco, CA 94109", UserID: manager.ID},
		{Name: "Riverside Condos", Address: "789 River Road, New York, NY 10001", UserID: manager.ID},
	}
	properties := make([]domain.Property, 0, len(propertySpecs))
	for _, p := range propertySpecs {
		created, err := s.CreateProperty(ctx, p)
		if err != nil {
			return err
		}
		properties = append(properties, created)
	}

	tenantSpecs := []domain.Tenant{
		{Name: "David Wilson", Email: "david@example.com", Phone: "+14155550101", PropertyID: properties[0].ID, UnitNumber: "3B", UserID: manager.ID},
		{Name: "Lisa Rodriguez", Email: "lisa@example.com", Phone: "+14155550102", PropertyID: properties[1].ID, UnitNumber: "5A", UserID: manager.ID},
		{Name: "Michael Brown", Email: "michael@example.com", Phone: "+14155550103", PropertyID: properties[2].ID, UnitNumber: "2C", UserID: manager.ID},
		{Name: "Jennifer Taylor", Email: "jennifer@example.com", Phone: "+14155550104", PropertyID: properties[0].ID, UnitNumber: "4D", UserID: manager.ID},
	}
	tenants := make([]domain.Tenant, 0, len(tenantSpecs))
	for _, t := range tenantSpecs {
		created, err := s.CreateTenant(ctx, t)
		if err != nil {
			return err
		}
		tenants = append(tenants, created)
	}

	now := time.Now()
	messages := []domain.Message{
		{
			TenantID:        tenants[0].ID,
			Content:         "There's water flooding from under my kitchen sink! It's all over the floor and spreading fast. Need emergency help!",
			OriginalContent: "There's water flooding from under my kitchen sink! It's all over the floor and spreading fast. Need emergency help!",
			Channel:         domain.ChannelSMS,
			Urgency:         domain.UrgencyEmergency,
			Category:        "plumbing",
			AISummary:       "Emergency water leak from kitchen sink causing flooding.",
			AIResponse:      "Mr. Wilson, I'm sorry to hear about the water leak. This is an emergency situation. Our emergency plumber has been notified and will arrive within the next 30 minutes.",
			AISource:        domain.AISourceModel,
			Status:          domain.StatusOpen,
			CreatedAt:       now.Add(-20 * time.Minute),
			Metadata: domain.MessageMetadata{
				Phone:        tenants[0].Phone,
				TenantName:   tenants[0].Name,
				UnitNumber:   tenants[0].UnitNumber,
				PropertyName: properties[0].Name,
			},
		},
		{
			TenantID:        tenants[1].ID,
			Content:         "Hi, this is Lisa Rodriguez from 5A. My air conditioning has stopped working completely. It's really hot in here, and I have a newborn baby. Please send someone as soon as possible.",
			OriginalContent: "Hi, this is Lisa Rodriguez from 5A. My air conditioning has stopped working completely. It's really hot in here, and I have a newborn baby. Please send someone as soon as possible.",
			Channel:         domain.ChannelVoicemail,
			Urgency:         domain.UrgencyHigh,
			Category:        "hvac",
			AISummary:       "AC completely non-functional in Unit 5A. Tenant has newborn baby and cannot stay in unit without AC.",
			AIResponse:      "Ms. Rodriguez, I understand your AC is completely out. I've scheduled an HVAC technician to visit today between 2-4pm.",
			AISource:        domain.AISourceModel,
			Status:          domain.StatusOpen,
			CreatedAt:       now.Add(-time.Hour),
			Metadata: domain.MessageMetadata{
				Phone:        tenants[1].Phone,
				TenantName:   tenants[1].Name,
				UnitNumber:   tenants[1].UnitNumber,
				PropertyName: properties[1].Name,
			},
		},
		{
			TenantID:        tenants[2].ID,
			Content:         "Hello Property Management, several outlets in my living room have stopped working. The breaker hasn't tripped. Not an emergency but I'd like it fixed this week. Thanks, Michael Brown",
			OriginalContent: "Hello Property Management, several outlets in my living room have stopped working. The breaker hasn't tripped. Not an emergency but I'd like it fixed this week. Thanks, Michael Brown",
			Channel:         domain.ChannelEmail,
			Urgency:         domain.UrgencyMedium,
			Category:        "electrical",
			AISummary:       "Multiple non-functioning electrical outlets in living room.",
			AIResponse:      "Mr. Brown, thank you for reporting the issue with your living room outlets. I've scheduled our electrician to visit your unit this Thursday between 9am-12pm.",
			AISource:        domain.AISourceModel,
			Status:          domain.StatusOpen,
			CreatedAt:       now.Add(-3 * time.Hour),
			Metadata: domain.MessageMetadata{
				Email:        tenants[2].Email,
				TenantName:   tenants[2].Name,
				UnitNumber:   tenants[2].UnitNumber,
				PropertyName: properties[2].Name,
			},
		},
		{
			TenantID:        tenants[3].ID,
			Content:         "Hi, I was wondering when the community pool will be reopened? The sign says it's closed for maintenance but doesn't give a date. Thanks!",
			OriginalContent: "Hi, I was wondering when the community pool will be reopened? The sign says it's closed for maintenance but doesn't give a date. Thanks!",
			Channel:         domain.ChannelSMS,
			Urgency:         domain.UrgencyLow,
			Category:        "general",
			AISummary:       "Inquiry about community pool reopening date.",
			AIResponse:      "Hi Jennifer, thank you for your message. The community pool is scheduled to reopen next Monday.",
			AISource:        domain.AISourceModel,
			Status:          domain.StatusOpen,
			CreatedAt:       now.Add(-24 * time.Hour),
			Metadata: domain.MessageMetadata{
				Phone:        tenants[3].Phone,
				TenantName:   tenants[3].Name,
				UnitNumber:   tenants[3].UnitNumber,
				PropertyName: properties[0].Name,
			},
		},
	}
	for _, m := range messages {
		if _, err := s.CreateMessage(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
