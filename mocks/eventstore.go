// Package mocks holds hand-maintained gomock doubles for the module's
// narrow interfaces, in place of a generated mock per interface; mirrors the
// teacher's mocks/driver/sql gomock doubles.
package mocks

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
)

// EventStore is a gomock double for eventstore.EventStore.
type EventStore struct {
	ctrl     *gomock.Controller
	recorder *EventStoreMockRecorder
}

// EventStoreMockRecorder records expectations on an EventStore double.
type EventStoreMockRecorder struct {
	mock *EventStore
}

// NewEventStore returns a new gomock double for eventstore.EventStore.
func NewEventStore(ctrl *gomock.Controller) *EventStore {
	m := &EventStore{ctrl: ctrl}
	m.recorder = &EventStoreMockRecorder{mock: m}
	return m
}

// EXPECT returns the recorder used to set expectations.
func (m *EventStore) EXPECT() *EventStoreMockRecorder {
	return m.recorder
}

// Load mocks eventstore.EventStore.Load.
func (m *EventStore) Load(ctx context.Context, streamID string) ([]eventstore.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Load", ctx, streamID)
	ret0, _ := ret[0].([]eventstore.Event)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Load records an expectation for a call to Load.
func (mr *EventStoreMockRecorder) Load(ctx, streamID interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Load", reflect.TypeOf((*EventStore)(nil).Load), ctx, streamID)
}

// Append mocks eventstore.EventStore.Append.
func (m *EventStore) Append(ctx context.Context, streamID string, expectedVersion int, events []eventstore.Event) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Append", ctx, streamID, expectedVersion, events)
	ret0, _ := ret[0].(error)
	return ret0
}

// Append records an expectation for a call to Append.
func (mr *EventStoreMockRecorder) Append(ctx, streamID, expectedVersion, events interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Append", reflect.TypeOf((*EventStore)(nil).Append), ctx, streamID, expectedVersion, events)
}

// LoadSince mocks eventstore.EventStore.LoadSince.
func (m *EventStore) LoadSince(ctx context.Context, position int64, limit int) ([]eventstore.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LoadSince", ctx, position, limit)
	ret0, _ := ret[0].([]eventstore.Event)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// LoadSince records an expectation for a call to LoadSince.
func (mr *EventStoreMockRecorder) LoadSince(ctx, position, limit interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LoadSince", reflect.TypeOf((*EventStore)(nil).LoadSince), ctx, position, limit)
}

// LatestPosition mocks eventstore.EventStore.LatestPosition.
func (m *EventStore) LatestPosition(ctx context.Context) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LatestPosition", ctx)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// LatestPosition records an expectation for a call to LatestPosition.
func (mr *EventStoreMockRecorder) LatestPosition(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LatestPosition", reflect.TypeOf((*EventStore)(nil).LatestPosition), ctx)
}

var _ eventstore.EventStore = &EventStore{}
