package twenty

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"spartan-crm/internal/domain"
)

const leadPageSize = 60

// LeadFilter narrows ListLeads after the fetch
type LeadFilter struct {
	// SalesRep matches the assigned rep label, case-insensitive
	SalesRep string
}

// ListLeads pages through every remote lead
func (c *Client) ListLeads(ctx context.Context, filter *LeadFilter) ([]domain.Lead, error) {
	var leads []domain.Lead
	var after *string

	for {
		vars := map[string]any{"first": leadPageSize}
		if after != nil {
			vars["after"] = *after
		}

		var data struct {
			Leads connection[remoteLead] `json:"leads"`
		}
		if err := c.execute(ctx, opListLeads, vars, &data); err != nil {
			return nil, err
		}
		for _, node := range data.Leads.nodes() {
			leads = append(leads, node.toDomain())
		}

		if !data.Leads.PageInfo.HasNextPage || data.Leads.PageInfo.EndCursor == "" {
			break
		}
		cursor := data.Leads.PageInfo.EndCursor
		after = &cursor
	}

	c.logger.Debug("Listed remote leads", zap.Int("count", len(leads)))

	if filter == nil || filter.SalesRep == "" {
		return leads, nil
	}
	filtered := leads[:0]
	for _, l := range leads {
		if strings.EqualFold(l.SalesRep, filter.SalesRep) {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

// GetLead fetches one remote lead by id
func (c *Client) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var data struct {
		Lead *remoteLead `json:"lead"`
	}
	if err := c.execute(ctx, opGetLead, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Lead == nil {
		return nil, ErrNotFound
	}
	l := data.Lead.toDomain()
	return &l, nil
}

// CreateLead creates lead remotely and returns the remote record with its assigned id
func (c *Client) CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	var data struct {
		CreateLead remoteLead `json:"createLead"`
	}
	if err := c.execute(ctx, opCreateLead, map[string]any{"data": leadInput(lead)}, &data); err != nil {
		return nil, err
	}
	created := data.CreateLead.toDomain()
	c.logger.Info("Created remote lead", zap.String("lead_id", created.ID))
	return &created, nil
}

// UpdateLead replaces the remote content of lead.ID with lead
func (c *Client) UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	return c.updateLead(ctx, lead.ID, leadInput(lead))
}

// PatchLead sends only the fields set on patch. current supplies the
// untouched address components.
func (c *Client) PatchLead(ctx context.Context, id string, patch domain.LeadPatch, current domain.Lead) (*domain.Lead, error) {
	return c.updateLead(ctx, id, patchInput(patch, current))
}

func (c *Client) updateLead(ctx context.Context, id string, input map[string]any) (*domain.Lead, error) {
	var data struct {
		UpdateLead *remoteLead `json:"updateLead"`
	}
	if err := c.execute(ctx, opUpdateLead, map[string]any{"id": id, "data": input}, &data); err != nil {
		return nil, err
	}
	if data.UpdateLead == nil {
		return nil, ErrNotFound
	}
	updated := data.UpdateLead.toDomain()
	return &updated, nil
}

// DeleteLead removes a remote lead
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	var data struct {
		DeleteLead *struct {
			ID string `json:"id"`
		} `json:"deleteLead"`
	}
	if err := c.execute(ctx, opDeleteLead, map[string]any{"id": id}, &data); err != nil {
		return err
	}
	if data.DeleteLead == nil {
		return ErrNotFound
	}
	c.logger.Info("Deleted remote lead", zap.String("lead_id", id))
	return nil
}
