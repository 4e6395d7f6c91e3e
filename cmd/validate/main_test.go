package main

import "testing"

func TestCheckLoanPanel(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"complete", `<section data-limit="1800.00" data-monthly-rate="4.08" data-max-installments="12" data-max-date="2099-12-31">`, false},
		{"no maximum date", `<section data-limit="0.00" data-monthly-rate="4.08" data-max-installments="12" data-max-date="">`, false},
		{"no rate", `<section data-limit="1800.00" data-monthly-rate="" data-max-installments="12">`, true},
		{"zero installments", `<section data-limit="1800.00" data-monthly-rate="4.08" data-max-installments="0">`, true},
		{"not the loan page", `<html><body>login</body></html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkLoanPanel(tt.body); (err != nil) != tt.wantErr {
				t.Errorf("checkLoanPanel() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
