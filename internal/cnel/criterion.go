package cnel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is wrapped by every criterion or identifier validation error.
var ErrInvalidQuery = errors.New("invalid query")

// Criterion selects which identifier the API searches by.
type Criterion string

const (
	CriterionID              Criterion = "IDENTIFICACION"
	CriterionContractAccount Criterion = "CUENTA_CONTRATO"
	CriterionUniqueCode      Criterion = "CUEN"
)

// Criteria lists the supported criteria in display order.
var Criteria = []Criterion{CriterionID, CriterionContractAccount, CriterionUniqueCode}

var criterionLabels = map[Criterion]string{
	CriterionID:              "Número de identificación",
	CriterionContractAccount: "Cuenta contrato",
	CriterionUniqueCode:      "Código único",
}

// Maximum identifier length per criterion. Identification numbers are 10
// digits (cédula) or 13 (RUC).
var criterionMaxLen = map[Criterion]int{
	CriterionID:              13,
	CriterionContractAccount: 20,
	CriterionUniqueCode:      20,
}

// Label returns the Spanish label for the criterion.
func (c Criterion) Label() string {
	if l, ok := criterionLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is a known criterion.
func (c Criterion) Valid() bool {
	_, ok := criterionLabels[c]
	return ok
}

// ParseCriterion accepts a criterion name in any case. An empty string
// yields def.
func ParseCriterion(s string, def Criterion) (Criterion, error) {
	if s == "" {
		return def, nil
	}
	c := Criterion(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown search criterion %q", ErrInvalidQuery, s)
	}
	return c, nil
}

// ValidateIdentifier checks that id is a non-empty string of digits within
// the length limit of the criterion.
func ValidateIdentifier(c Criterion, id string) error {
	if id == "" {
		return fmt.Errorf("%w: identifier is required", ErrInvalidQuery)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: identifier must contain only digits", ErrInvalidQuery)
		}
	}
	if max, ok := criterionMaxLen[c]; ok && len(id) > max {
		return fmt.Errorf("%w: identifier for %s must be at most %d digits", ErrInvalidQuery, c.Label(), max)
	}
	return nil
}
