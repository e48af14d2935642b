package agentgrpc

import (
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// recordSpanError marks span failed, mirroring the teacher's
// raftgrpc.recordSpanError.
func recordSpanError(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

func establishTermAttrs(req *EstablishTermRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("agent.history_id", string(req.HistoryID)),
		attribute.Int64("agent.term", req.Term.Number),
		attribute.String("agent.leader_id", req.Term.LeaderID),
		attribute.Int64("agent.log_position", req.LogPosition),
	}
}

func appendAttrs(req *AppendRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("agent.history_id", string(req.HistoryID)),
		attribute.Int64("agent.term", req.Term.Number),
		attribute.String("agent.leader_id", req.Term.LeaderID),
		attribute.Int64("agent.committed_seqno", req.CommittedSeqno),
		attribute.Int("agent.entries_count", len(req.Entries)),
	}
}

func ensureTermAttrs(req *EnsureTermRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("agent.history_id", string(req.HistoryID)),
		attribute.Int64("agent.term", req.Term.Number),
		attribute.String("agent.leader_id", req.Term.LeaderID),
	}
}
