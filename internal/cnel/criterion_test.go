package cnel

import (
	"errors"
	"testing"
)

func TestParseCriterion(t *testing.T) {
	tests := []struct {
		in      string
		want    Criterion
		wantErr bool
	}{
		{"", CriterionID, false},
		{"IDENTIFICACION", CriterionID, false},
		{"cuenta_contrato", CriterionContractAccount, false},
		{" cuen ", CriterionUniqueCode, false},
		{"NOMBRE", "", true},
	}

	for _, tt := range tests {
		got, err := ParseCriterion(tt.in, CriterionID)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCriterion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCriterion(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCriterion_Label(t *testing.T) {
	if got := CriterionUniqueCode.Label(); got != "Código único" {
		t.Errorf("Expected Código único, got %s", got)
	}
	if got := CriterionContractAccount.Label(); got != "Cuenta contrato" {
		t.Errorf("Expected Cuenta contrato, got %s", got)
	}
	if got := Criterion("X").Label(); got != "X" {
		t.Errorf("Expected unknown criterion to label as itself, got %s", got)
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		criterion Criterion
		id        string
		ok        bool
	}{
		{CriterionID, "0912345678", true},
		{CriterionID, "0912345678001", true},
		{CriterionID, "09123456780011", false},
		{CriterionID, "", false},
		{CriterionID, "abc", false},
		{CriterionContractAccount, "200054509332", true},
		{CriterionUniqueCode, "1234567", true},
	}

	for _, tt := range tests {
		err := ValidateIdentifier(tt.criterion, tt.id)
		if tt.ok && err != nil {
			t.Errorf("ValidateIdentifier(%s, %q) unexpected error: %v", tt.criterion, tt.id, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("ValidateIdentifier(%s, %q) expected ErrInvalidQuery, got %v", tt.criterion, tt.id, err)
		}
	}
}
