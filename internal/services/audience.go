package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"paygate/internal/models/db_models"
	"paygate/internal/repositories"
)

// AudienceFilter narrows the recipients of an alert. Filters that do not
// apply to the alert must return contacts unchanged.
type AudienceFilter func(ctx context.Context, alert *db_models.Alert, contacts []db_models.Contact) ([]db_models.Contact, error)

type AudienceResolver interface {
	Resolve(ctx context.Context, alert *db_models.Alert) ([]db_models.Contact, error)
}

// Audience resolves reachable contacts of the alert's bot, then applies the
// language filter and any extra filters in order.
type Audience struct {
	contacts repositories.ContactRepository
	filters  []AudienceFilter
}

func NewAudience(contacts repositories.ContactRepository, filters ...AudienceFilter) *Audience {
	return &Audience{contacts: contacts, filters: filters}
}

func (a *Audience) Resolve(ctx context.Context, alert *db_models.Alert) ([]db_models.Contact, error) {
	contacts, err := a.contacts.ListReachable(ctx, alert.BotID)
	if err != nil {
		return nil, err
	}

	contacts = filterByLanguage(alert.LanguageFilter, contacts)
	for _, filter := range a.filters {
		if len(contacts) == 0 {
			break
		}
		contacts, err = filter(ctx, alert, contacts)
		if err != nil {
			return nil, err
		}
	}
	return contacts, nil
}

func filterByLanguage(filter string, contacts []db_models.Contact) []db_models.Contact {
	if strings.TrimSpace(filter) == "" {
		return contacts
	}
	wanted := parseLanguageFilter(filter)
	kept := contacts[:0:0]
	for _, c := range contacts {
		if MatchesLanguage(wanted, c.LanguageCode) {
			kept = append(kept, c)
		}
	}
	return kept
}

func parseLanguageFilter(filter string) []language.Tag {
	var tags []language.Tag
	for _, part := range strings.Split(filter, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if tag, err := language.Parse(part); err == nil {
			tags = append(tags, tag)
		}
	}
	return tags
}

// MatchesLanguage reports whether a contact language code satisfies any of
// the wanted tags. The base language must match; the region only when the
// wanted tag names one explicitly.
func MatchesLanguage(wanted []language.Tag, code string) bool {
	contactTag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
	if err != nil {
		return false
	}
	contactBase, _ := contactTag.Base()
	contactRegion, contactConf := contactTag.Region()

	for _, tag := range wanted {
		base, _ := tag.Base()
		if base != contactBase {
			continue
		}
		region, conf := tag.Region()
		if conf != language.Exact {
			return true
		}
		if contactConf == language.Exact && region == contactRegion {
			return true
		}
	}
	return false
}

// CategoryAudienceFilter keeps contacts whose category equals the alert's
// category filter.
func CategoryAudienceFilter() AudienceFilter {
	return func(_ context.Context, alert *db_models.Alert, contacts []db_models.Contact) ([]db_models.Contact, error) {
		if alert.CategoryFilter == "" {
			return contacts, nil
		}
		kept := contacts[:0:0]
		for _, c := range contacts {
			if strings.EqualFold(c.Category, alert.CategoryFilter) {
				kept = append(kept, c)
			}
		}
		return kept, nil
	}
}

// PlanAudienceFilter keeps contacts holding a granted transaction for the
// alert's plan filter.
func PlanAudienceFilter(repo repositories.ContactRepository) AudienceFilter {
	return func(ctx context.Context, alert *db_models.Alert, contacts []db_models.Contact) ([]db_models.Contact, error) {
		if alert.PlanFilter == nil {
			return contacts, nil
		}
		ids, err := repo.ListIDsHoldingPlan(ctx, alert.BotID, *alert.PlanFilter)
		if err != nil {
			return nil, err
		}
		holders := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			holders[id] = struct{}{}
		}
		kept := contacts[:0:0]
		for _, c := range contacts {
			if _, ok := holders[c.ID]; ok {
				kept = append(kept, c)
			}
		}
		return kept, nil
	}
}
