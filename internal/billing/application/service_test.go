package application

import (
	"context"
	"errors"
	"testing"

	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
	"utility-billing/internal/recordstore"
)

func seededStore(t *testing.T, values ...float64) *recordstore.Store {
	t.Helper()
	store := recordstore.New()
	if _, err := store.AddCustomer(masterdata.Customer{ID: 1, Name: "Ana Souza"}); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	meter, err := masterdata.NewMeter(10, 1, "MED-0010")
	if err != nil {
		t.Fatalf("new meter: %v", err)
	}
	if _, err := store.AddMeter(meter); err != nil {
		t.Fatalf("add meter: %v", err)
	}
	for _, r := range history(t, values...) {
		if err := store.AppendReading(r); err != nil {
			t.Fatalf("append reading: %v", err)
		}
	}
	return store
}

func newTestService(t *testing.T, store *recordstore.Store, sink *stubSink, anomalies *stubAnomalies) *Service {
	t.Helper()
	processor, err := NewProcessor(sink, anomalies, store, WithClock(fixedClock{now: testNow}))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	service, err := NewService(store, processor)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestService_BillMeter(t *testing.T) {
	store := seededStore(t, 90, 95, 100)
	sink := &stubSink{}
	anomalies := &stubAnomalies{}
	service := newTestService(t, store, sink, anomalies)
	ctx := context.Background()

	result, err := service.BillMeter(ctx, 10, 98)
	if err != nil {
		t.Fatalf("bill meter: %v", err)
	}
	if result.Outcome != OutcomeInvoiced || result.ReadingID != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
	meter, err := store.Meter(10)
	if err != nil {
		t.Fatalf("meter: %v", err)
	}
	if meter.CurrentKWh != 98 {
		t.Fatalf("meter reading not updated: %v", meter.CurrentKWh)
	}
	readings := store.ReadingsForMeter(10)
	if len(readings) != 4 || readings[3].Period != "2024-04" || readings[3].ReadOn != "2024-04-15" {
		t.Fatalf("reading not appended: %+v", readings)
	}

	result, err = service.BillMeter(ctx, 10, 115)
	if err != nil {
		t.Fatalf("bill meter: %v", err)
	}
	if result.Outcome != OutcomeInconsistent {
		t.Fatalf("expected inconsistent, got %+v", result)
	}
	if got := len(store.BillableHistory(10)); got != 4 {
		t.Fatalf("inconsistent reading must stay out of the baseline, billable=%d", got)
	}
	if got := store.ReadingsForMeter(10)[4].Status; got != metering.StatusInconsistent {
		t.Fatalf("expected inconsistent status, got %s", got)
	}
	meter, _ = store.Meter(10)
	if meter.CurrentKWh != 98 {
		t.Fatalf("rejected reading must not move the meter, got %v", meter.CurrentKWh)
	}
	if len(sink.invoices) != 1 || len(anomalies.entries) != 1 {
		t.Fatalf("expected 1 invoice and 1 anomaly, got %d/%d", len(sink.invoices), len(anomalies.entries))
	}
}

func TestService_BillMeter_UnknownMeter(t *testing.T) {
	service := newTestService(t, seededStore(t), &stubSink{}, &stubAnomalies{})
	if _, err := service.BillMeter(context.Background(), 99, 10); !errors.Is(err, masterdata.ErrMeterNotFound) {
		t.Fatalf("expected ErrMeterNotFound, got %v", err)
	}
}

func TestService_BillMeter_NegativeLeavesStoreUntouched(t *testing.T) {
	store := seededStore(t, 90, 95, 100)
	service := newTestService(t, store, &stubSink{}, &stubAnomalies{})
	if _, err := service.BillMeter(context.Background(), 10, -5); err == nil {
		t.Fatalf("expected error for negative reading")
	}
	if got := len(store.ReadingsForMeter(10)); got != 3 {
		t.Fatalf("expected 3 readings, got %d", got)
	}
}

func TestService_BillLatest(t *testing.T) {
	store := seededStore(t, 90, 95, 100, 150)
	sink := &stubSink{}
	anomalies := &stubAnomalies{}
	service := newTestService(t, store, sink, anomalies)

	result, ok, err := service.BillLatest(context.Background(), 10)
	if err != nil || !ok {
		t.Fatalf("bill latest: ok=%v err=%v", ok, err)
	}
	if result.Outcome != OutcomeInconsistent || result.ReadingID != 4 {
		t.Fatalf("expected reading 4 inconsistent, got %+v", result)
	}
	if len(anomalies.entries) != 1 || anomalies.entries[0].ReadingID != 4 {
		t.Fatalf("unexpected anomalies: %+v", anomalies.entries)
	}

	// 150 is now excluded, so 100 becomes the latest billable reading.
	result, ok, err = service.BillLatest(context.Background(), 10)
	if err != nil || !ok {
		t.Fatalf("bill latest: ok=%v err=%v", ok, err)
	}
	if result.Outcome != OutcomeInvoiced || result.Amount != 40 {
		t.Fatalf("expected 100 kWh invoiced at 40, got %+v", result)
	}
}

func TestService_BillLatest_NoReadings(t *testing.T) {
	service := newTestService(t, seededStore(t), &stubSink{}, &stubAnomalies{})
	_, ok, err := service.BillLatest(context.Background(), 10)
	if err != nil {
		t.Fatalf("bill latest: %v", err)
	}
	if ok {
		t.Fatalf("expected no result for a meter without readings")
	}
}
