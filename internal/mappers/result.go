package mappers

import (
	"github.com/cutekitek/rankode-judge/internal/repository/models"
)

// VerdictToWire renders a verdict in the string form the result endpoint consumes.
func VerdictToWire(v models.Verdict) string {
	switch v.Kind {
	case models.VerdictWrongAnswer, models.VerdictRuntimeError, models.VerdictCompileError, models.VerdictSystemError:
		return v.Kind.String() + ": " + v.Diagnostic
	default:
		return v.Kind.String()
	}
}

func CaseResultToMessage(submissionId string, res models.CaseResult) *models.ResultMessage {
	return &models.ResultMessage{
		Id:     submissionId,
		Case:   res.Case,
		Result: VerdictToWire(res.Verdict),
		Time:   res.Time.Milliseconds(),
		Memory: res.MemoryKB,
	}
}
