package regularization

import "github.com/rentflow/backend/internal/domain/shared"

var (
	ErrNoChargesRecorded = shared.NewDomainError("NO_CHARGES_RECORDED", "No annual charges recorded for this fiscal year")
	ErrNoLeasesFound     = shared.NewDomainError("NO_LEASES_FOUND", "No leases found for this fiscal year")
	ErrInvalidFiscalYear = shared.NewDomainError("INVALID_FISCAL_YEAR", "Invalid fiscal year")

	// ErrRegularizationMismatch is returned when a command names another
	// entity or year than the aggregate it was sent to
	ErrRegularizationMismatch = shared.NewDomainError("REGULARIZATION_MISMATCH", "Command does not target this regularization")
	ErrRegularizationNotFound = shared.NewDomainError("REGULARIZATION_NOT_FOUND", "Charge regularization not found")
	ErrNotCalculated          = shared.NewDomainError("REGULARIZATION_NOT_CALCULATED", "Charge regularization has not been calculated")
)

func invalidFiscalYearError(year int, policy FiscalYearPolicy) error {
	if policy.Max > 0 && year > policy.Max {
		return ErrInvalidFiscalYear.Withf("Invalid fiscal year: %d (maximum %d)", year, policy.Max)
	}
	return ErrInvalidFiscalYear.Withf("Invalid fiscal year: %d (minimum %d)", year, policy.Min)
}
