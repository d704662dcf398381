// internal/services/contract_service.go
package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/models"
)

// UnresolvedPlaceholder is rendered in place of any token that has no value
// yet, so a draft with missing data never reads as complete.
const UnresolvedPlaceholder = "TBD"

var placeholderPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// ContractService composes draft contracts from the ordered clause templates.
// The output is a point-in-time snapshot; regenerating never alters documents
// that were already archived.
type ContractService struct {
	db *gorm.DB
}

func NewContractService(db *gorm.DB) *ContractService {
	return &ContractService{db: db}
}

// RenderDraft builds the draft contract text for a request and its fanned-out
// licenses. The clause read runs on the caller's transaction when one is open
// so rendering never escapes the surrounding unit of work. The execution date
// stays a placeholder token for the signature provider to fill at signing time.
func (s *ContractService) RenderDraft(tx *gorm.DB, request *models.Request, licenses []models.License) (string, error) {
	if tx == nil {
		tx = s.db
	}

	var clauses []models.ClauseTemplate
	if err := tx.Where("is_active = ?", true).Order("position ASC").Find(&clauses).Error; err != nil {
		return "", fmt.Errorf("failed to load clause templates: %w", err)
	}
	if len(clauses) == 0 {
		return "", fmt.Errorf("no active clause templates configured")
	}

	tokens := s.TokenMap(request, licenses)

	var doc strings.Builder
	for i, clause := range clauses {
		if i > 0 {
			doc.WriteString("\n\n")
		}
		doc.WriteString(fmt.Sprintf("%d. %s\n", i+1, clause.Title))
		doc.WriteString(substitute(clause.Body, tokens))
	}

	return doc.String(), nil
}

// TokenMap collects the placeholder values drawn from the request. Missing
// values are simply absent: substitution renders the sentinel for them.
func (s *ContractService) TokenMap(request *models.Request, licenses []models.License) map[string]string {
	tokens := map[string]string{
		"effective_date": time.Now().Format("January 2, 2006"),
	}

	setToken(tokens, "package_reference", request.PackageReference)
	setToken(tokens, "licensee_name", request.LicenseeName)
	setToken(tokens, "licensee_email", request.LicenseeEmail)
	setToken(tokens, "work_title", request.WorkTitle)
	setToken(tokens, "artist_name", request.ArtistName)
	setToken(tokens, "project_title", request.ProjectTitle)
	setToken(tokens, "territory", request.Territory)
	setToken(tokens, "term", request.Term)
	setToken(tokens, "currency", request.Currency)
	if request.AggregateFee > 0 {
		tokens["fee_amount"] = fmt.Sprintf("%.2f", request.AggregateFee)
	}

	var grants, restrictions []string
	for _, lic := range licenses {
		if lic.GrantText != "" {
			grants = append(grants, fmt.Sprintf("[%s] %s", lic.LicenseRef, lic.GrantText))
		}
		if lic.Restrictions != "" {
			restrictions = append(restrictions, fmt.Sprintf("[%s] %s", lic.LicenseRef, lic.Restrictions))
		}
	}
	setToken(tokens, "grant_of_rights", strings.Join(grants, "\n"))
	setToken(tokens, "restrictions", strings.Join(restrictions, "\n"))

	// Filled by the signature provider at execution time.
	// The sentinel keeps unsent drafts honest.
	return tokens
}

func setToken(tokens map[string]string, key, value string) {
	if strings.TrimSpace(value) != "" {
		tokens[key] = value
	}
}

func substitute(body string, tokens map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := tokens[name]; ok {
			return value
		}
		return UnresolvedPlaceholder
	})
}
