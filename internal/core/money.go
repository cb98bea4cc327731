// Package core holds the clinic's entities and the pure rules that price them.
//
// This file contains the money rules: splitting an amount between doctor and
// hospital, applying a discount to a base fee and computing referral payouts.
// All results are whole currency units rounded half away from zero, which is
// half-up for the non-negative inputs accepted here.
package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns round(amount * pct / 100).
func percentOf(amount Money, pct int) Money {
	v := decimal.NewFromInt(int64(amount)).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Round(0)
	return Money(v.IntPart())
}

// ComputeShares splits amount between doctor and hospital.
//
// The doctor share is round(amount * sharePercent / 100) and the hospital
// receives the remainder, so the two always add up to amount exactly.
//
// Examples:
//   ComputeShares(360, 50) -> {180, 180}
//   ComputeShares(5, 50)   -> {3, 2} (half rounds up)
func ComputeShares(amount Money, sharePercent int) (Shares, error) {
	if err := amount.Validate(); err != nil {
		return Shares{}, fmt.Errorf("compute shares of %d: %w", amount, err)
	}
	if err := validatePercent(sharePercent); err != nil {
		return Shares{}, fmt.Errorf("compute shares at %d%%: %w", sharePercent, err)
	}
	doctor := percentOf(amount, sharePercent)
	return Shares{DoctorShare: doctor, HospitalShare: amount - doctor}, nil
}

// ClampPercent bounds p to [0,100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// NetFee applies a discount to a doctor's base fee. The discount is clamped to
// [0,100] first; clamping is a business rule here, not an error path.
func NetFee(baseFee Money, discountPercent int) (Money, error) {
	if err := baseFee.Validate(); err != nil {
		return 0, fmt.Errorf("net fee of %d: %w", baseFee, err)
	}
	return percentOf(baseFee, 100-ClampPercent(discountPercent)), nil
}

// ReferralPayout is the informational amount owed to an inbound referrer. It
// is deducted from the hospital's net position and never stored on the visit.
func ReferralPayout(fee Money, referralPercent int) (Money, error) {
	if err := fee.Validate(); err != nil {
		return 0, fmt.Errorf("referral payout of %d: %w", fee, err)
	}
	if err := validatePercent(referralPercent); err != nil {
		return 0, fmt.Errorf("referral payout at %d%%: %w", referralPercent, err)
	}
	return percentOf(fee, referralPercent), nil
}

// PatientShares computes the intake snapshot for a visit: the net fee after
// discount and its split under the doctor's share percent.
func PatientShares(doc Doctor, discountPercent int) (Money, Shares, error) {
	fee, err := NetFee(doc.Fee, discountPercent)
	if err != nil {
		return 0, Shares{}, err
	}
	shares, err := ComputeShares(fee, doc.DoctorSharePercent)
	if err != nil {
		return 0, Shares{}, err
	}
	return fee, shares, nil
}
