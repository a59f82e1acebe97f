// Package pof handles patient-owned frames: condition assessment, liability
// waivers and the flat lens-fitting service fee.
package pof

import (
	"fmt"
	"strings"
)

// Frame conditions as assessed by the optician at intake.
const (
	ConditionExcellent = "EXCELLENT"
	ConditionGood      = "GOOD"
	ConditionFair      = "FAIR"
	ConditionPoor      = "POOR"
)

// DefaultServiceFee is the flat fee for fitting lenses into a frame the
// patient brought in.
const DefaultServiceFee = 45.0

// DefaultMinFrameValue is the lowest estimated frame value worth servicing.
const DefaultMinFrameValue = 20.0

// Assessment is the outcome of validating a patient-owned frame.
type Assessment struct {
	Acceptable bool     `json:"acceptable"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// FrameIntake describes the frame as presented by the patient.
type FrameIntake struct {
	Condition      string  `json:"condition" validate:"required,oneof=EXCELLENT GOOD FAIR POOR"`
	Description    string  `json:"description" validate:"required"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0"`
}

// ValidateFrame assesses whether a patient-owned frame can be serviced. A
// POOR-condition frame is never acceptable: the fitting process stresses the
// frame and the shop cannot take on a frame likely to break on the bench.
func ValidateFrame(intake FrameIntake, minValue float64) Assessment {
	if minValue <= 0 {
		minValue = DefaultMinFrameValue
	}
	var a Assessment

	switch intake.Condition {
	case ConditionExcellent, ConditionGood:
	case ConditionFair:
		a.Warnings = append(a.Warnings, "frame condition is FAIR; advise the patient of elevated breakage risk during fitting")
	case ConditionPoor:
		a.Errors = append(a.Errors, "POOR-condition frames cannot be serviced")
	default:
		a.Errors = append(a.Errors, fmt.Sprintf("unknown frame condition %q", intake.Condition))
	}

	if strings.TrimSpace(intake.Description) == "" {
		a.Errors = append(a.Errors, "frame description is required")
	}
	if intake.EstimatedValue < minValue {
		a.Errors = append(a.Errors, fmt.Sprintf("estimated frame value %.2f is below the %.2f service minimum", intake.EstimatedValue, minValue))
	}

	a.Acceptable = len(a.Errors) == 0
	return a
}
