// Package derive turns a newly inserted permit into a sales lead.
package derive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"permit_ingest_backend/internal/events"
	leadsdomain "permit_ingest_backend/internal/leads/domain"
	"permit_ingest_backend/internal/leads/rules"
	outbox "permit_ingest_backend/internal/outbox/service"
	permitsdomain "permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store"
	"permit_ingest_backend/platform/logger"
	"permit_ingest_backend/platform/phone"
	"permit_ingest_backend/platform/validator"

	"github.com/google/uuid"
)

// Raw payload keys checked, in order, for lead contact details.
var (
	emailKeys = []string{"applicant_email", "contact_email", "email", "owner_email", "contractor_email"}
	phoneKeys = []string{"applicant_phone", "contact_phone", "phone", "phone_number", "owner_phone", "contractor_phone"}
)

// Engine derives leads. It is safe for concurrent use.
type Engine struct {
	rules *rules.Rules
	val   *validator.Validator
	log   *logger.Logger
	now   func() time.Time
}

func New(r *rules.Rules, val *validator.Validator, log *logger.Logger) *Engine {
	return &Engine{
		rules: r,
		val:   val,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// DeriveLead creates the lead for p inside tx and records lead.created.
// It returns nil when a lead already references p.
func (e *Engine) DeriveLead(ctx context.Context, tx store.Tx, p permitsdomain.Permit) (*leadsdomain.Lead, error) {
	existing, err := tx.Leads().FindByPermit(ctx, p.ID)
	switch {
	case err == nil:
		e.log.Debug("lead derivation skipped", "permitId", p.ID, "leadId", existing.ID)
		return nil, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find lead for permit %s: %w", p.ID, err)
	}

	lead := e.Build(p)
	if err := tx.Leads().Insert(ctx, lead); err != nil {
		return nil, fmt.Errorf("insert lead for permit %s: %w", p.ID, err)
	}
	if _, err := outbox.Enqueue(ctx, tx.Events(), events.NewLeadCreated(lead, e.now())); err != nil {
		return nil, fmt.Errorf("enqueue lead.created: %w", err)
	}
	return &lead, nil
}

// Build computes the lead for p without touching any store.
func (e *Engine) Build(p permitsdomain.Permit) leadsdomain.Lead {
	now := e.now()
	classification := e.rules.Classify(
		permitsdomain.StringValue(p.WorkDescription),
		permitsdomain.StringValue(p.PermitType),
		permitsdomain.StringValue(p.PermitClass),
	)
	county, countyRule := e.county(p)
	raw := e.decodeRaw(p)

	permitID := p.ID
	lead := leadsdomain.Lead{
		ID:        uuid.New(),
		PermitID:  &permitID,
		Name:      leadName(p),
		Email:     e.email(raw),
		Phone:     leadPhone(raw),
		Address:   p.Address,
		City:      p.City,
		State:     p.State,
		Zip:       p.Zipcode,
		County:    county,
		Service:   classification.Trade,
		Trade:     classification.Trade,
		Value:     p.Valuation,
		Status:    leadsdomain.StatusNew,
		Source:    leadsdomain.SourcePermitIngest,
		CreatedAt: leadCreatedAt(p, now),
		UpdatedAt: now,
	}
	lead.Metadata = map[string]any{
		leadsdomain.MetaOriginatingPermitID: p.ID.String(),
		"permit_key":                        p.PermitKey,
		"permit_source":                     string(p.Source),
		"permit_type":                       permitsdomain.StringValue(p.PermitType),
		"permit_class":                      permitsdomain.StringValue(p.PermitClass),
		"work_description":                  permitsdomain.StringValue(p.WorkDescription),
		"classification_rule":               classification.Rule,
		"county_rule":                       countyRule,
	}
	if classification.Keyword != "" {
		lead.Metadata["classification_keyword"] = classification.Keyword
	}
	return lead
}

func leadName(p permitsdomain.Permit) string {
	for _, candidate := range []*string{p.ApplicantName, p.OwnerName, p.ContractorName} {
		if name := strings.TrimSpace(permitsdomain.StringValue(candidate)); name != "" {
			return name
		}
	}
	return leadsdomain.UnknownValue
}

func (e *Engine) county(p permitsdomain.Permit) (string, string) {
	if county := strings.TrimSpace(permitsdomain.StringValue(p.County)); county != "" {
		return county, "permit"
	}
	if county, ok := e.rules.CountyFor(permitsdomain.StringValue(p.Jurisdiction)); ok {
		return county, "jurisdiction"
	}
	return leadsdomain.UnknownValue, "default"
}

func leadCreatedAt(p permitsdomain.Permit, now time.Time) time.Time {
	if p.IssuedDate != nil && !p.IssuedDate.IsZero() {
		return p.IssuedDate.UTC()
	}
	if !p.CreatedAt.IsZero() {
		return p.CreatedAt
	}
	return now
}

func (e *Engine) email(raw map[string]any) *string {
	for _, key := range emailKeys {
		value := strings.TrimSpace(stringOf(raw[key]))
		if value == "" {
			continue
		}
		if e.val != nil && e.val.Var(value, "email") != nil {
			continue
		}
		value = strings.ToLower(value)
		return &value
	}
	return nil
}

func leadPhone(raw map[string]any) *string {
	for _, key := range phoneKeys {
		value := stringOf(raw[key])
		if normalized, ok := phone.NormalizeE164(value); ok {
			return &normalized
		}
	}
	return nil
}

// decodeRaw reads the stored payload for contact lookups. An unreadable
// payload yields no contact details.
func (e *Engine) decodeRaw(p permitsdomain.Permit) map[string]any {
	out := map[string]any{}
	if len(p.RawPayload) == 0 {
		return out
	}
	if err := json.Unmarshal(p.RawPayload, &out); err != nil {
		e.log.Debug("raw payload not decodable, lead has no contact details", "permitId", p.ID, "error", err)
		return map[string]any{}
	}
	return out
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
