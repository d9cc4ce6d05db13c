package pipeline

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/coreason-ai/pmc-etl/jats"
	"github.com/coreason-ai/pmc-etl/metrics"
	"github.com/coreason-ai/pmc-etl/schema"
)

// SilverResult is the outcome of transforming one bronze record. Record is
// nil unless Outcome is metrics.OutcomeParsed.
type SilverResult struct {
	Record     *jats.Record
	Outcome    string
	Violations []schema.Violation
}

// TransformSilver parses the payload of a bronze record. It never fails:
// every problem is logged and reported through the outcome so that one bad
// payload cannot abort a batch. Schema violations are logged as warnings and
// the record is kept. The validator is optional.
func TransformSilver(logger logrus.FieldLogger, validator *schema.Validator, m *metrics.Metrics, b *BronzeRecord) SilverResult {
	logger = logger.WithField("file_path", b.SourceFilePath)

	res := transformSilver(logger, validator, b)
	m.Parsed(res.Outcome)
	for _, v := range res.Violations {
		m.Violation(v.Field)
	}
	return res
}

func transformSilver(logger logrus.FieldLogger, validator *schema.Validator, b *BronzeRecord) (res SilverResult) {
	if len(b.RawXMLPayload) == 0 {
		logger.Warn("Empty payload, skipping")
		return SilverResult{Outcome: metrics.OutcomeEmpty}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("stack", string(debug.Stack())).Errorf("Parser panic! %v", r)
			res = SilverResult{Outcome: metrics.OutcomeFailed}
		}
	}()

	rec, err := jats.Parse(b.RawXMLPayload, b.Passthrough())
	if err != nil {
		var perr *jats.ParseError
		if errors.As(err, &perr) {
			logger.WithField("line", perr.Line).WithError(err).Error("Malformed XML, skipping")
			return SilverResult{Outcome: metrics.OutcomeMalformed}
		}
		logger.WithError(err).WithField("stack", fmt.Sprintf("%+v", err)).Error("Parser failure, skipping")
		return SilverResult{Outcome: metrics.OutcomeFailed}
	}
	if rec == nil {
		logger.Warn("No article element found, skipping")
		return SilverResult{Outcome: metrics.OutcomeAbsent}
	}

	res = SilverResult{Record: rec, Outcome: metrics.OutcomeParsed}
	if validator == nil {
		return res
	}
	violations, err := validator.Validate(rec)
	if err != nil {
		logger.WithError(err).Warn("Schema validation could not be performed")
		return res
	}
	for _, v := range violations {
		logger.WithFields(logrus.Fields{"field": v.Field, "pmcid": deref(rec.PMCID)}).Warnf("Schema violation: %s", v.Description)
	}
	res.Violations = violations
	return res
}
