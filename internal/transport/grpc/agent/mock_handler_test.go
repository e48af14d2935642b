package agentgrpc_test

// Hand-written in the shape mockgen would emit for agentgrpc.Handler
// (mockgen -source=server.go -destination=mock_handler_test.go), kept
// in-repo rather than regenerated on every build since no protoc/mockgen
// toolchain is wired into this workspace.

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// MockHandler is a mock of the agentgrpc.Handler interface.
type MockHandler struct {
	ctrl     *gomock.Controller
	recorder *MockHandlerMockRecorder
}

// MockHandlerMockRecorder is the mock recorder for MockHandler.
type MockHandlerMockRecorder struct {
	mock *MockHandler
}

// NewMockHandler creates a new mock instance.
func NewMockHandler(ctrl *gomock.Controller) *MockHandler {
	mock := &MockHandler{ctrl: ctrl}
	mock.recorder = &MockHandlerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockHandler) EXPECT() *MockHandlerMockRecorder {
	return m.recorder
}

func (m *MockHandler) EstablishTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, logPosition int64) (rsmlog.Metadata, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "EstablishTerm", ctx, historyID, term, logPosition)
	ret0, _ := ret[0].(rsmlog.Metadata)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockHandlerMockRecorder) EstablishTerm(ctx, historyID, term, logPosition any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EstablishTerm", reflect.TypeOf((*MockHandler)(nil).EstablishTerm), ctx, historyID, term, logPosition)
}

func (m *MockHandler) Append(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (int64, int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Append", ctx, historyID, term, committedSeqno, entries)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(int64)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

func (mr *MockHandlerMockRecorder) Append(ctx, historyID, term, committedSeqno, entries any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Append", reflect.TypeOf((*MockHandler)(nil).Append), ctx, historyID, term, committedSeqno, entries)
}

func (m *MockHandler) EnsureTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (int64, int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "EnsureTerm", ctx, historyID, term)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(int64)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

func (mr *MockHandlerMockRecorder) EnsureTerm(ctx, historyID, term any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EnsureTerm", reflect.TypeOf((*MockHandler)(nil).EnsureTerm), ctx, historyID, term)
}
