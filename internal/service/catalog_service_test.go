package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Freeeeeet/felanocare/internal/advice"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store/memory"
)

type stubLabels struct {
	records []advice.DrugRecord
	err     error
}

func (s stubLabels) Search(context.Context, string) ([]advice.DrugRecord, error) {
	return s.records, s.err
}

func nextSnapshot[T any](t *testing.T, s *ledger.Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C():
		require.True(t, ok, "stream closed: %v", s.Err())
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	var zero T
	return zero
}

func TestJournalService_OwnEntriesOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	journal := NewJournalService(memory.NewJournalStore(), nil, zaptest.NewLogger(t))
	alice := e.patientSession(t, "alice")
	bob := e.patientSession(t, "bob")

	_, err := journal.Add(ctx, alice, "   ")
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "text", ve.Field)

	_, err = journal.Add(ctx, alice, strings.Repeat("я", maxJournalText+1))
	require.ErrorAs(t, err, &ve)

	_, err = journal.Add(ctx, identity.Session{}, "hello")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	entry, err := journal.Add(ctx, alice, "  anxious before exams ")
	require.NoError(t, err)
	assert.Equal(t, "anxious before exams", entry.Text)
	assert.Equal(t, alice.UserID, entry.UserID)

	mine, err := journal.Entries(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	theirs, err := journal.Entries(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestJournalService_WatchFollowsNewEntries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	journal := NewJournalService(memory.NewJournalStore(), nil, zaptest.NewLogger(t))
	alice := e.patientSession(t, "alice")
	bob := e.patientSession(t, "bob")

	stream, err := journal.Watch(ctx, alice)
	require.NoError(t, err)
	defer stream.Close()

	assert.Empty(t, nextSnapshot(t, stream))

	_, err = journal.Add(ctx, alice, "first")
	require.NoError(t, err)
	snap := nextSnapshot(t, stream)
	require.Len(t, snap, 1)
	assert.Equal(t, "first", snap[0].Text)

	// чужие записи не будят поток
	_, err = journal.Add(ctx, bob, "not yours")
	require.NoError(t, err)
	select {
	case v := <-stream.C():
		t.Fatalf("unexpected snapshot %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCatalogService_ImportFromLabels(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pro := e.professionalSession(t, "pro")
	patient := e.patientSession(t, "pat")

	labels := stubLabels{records: []advice.DrugRecord{
		advice.DrugRecord(`{"openfda":{"generic_name":["IBUPROFEN"],"brand_name":["Advil"],"rxcui":["198211"]}}`),
		advice.DrugRecord(`{"openfda":{"generic_name":["Aspirin"]}}`),
		advice.DrugRecord(`{"openfda":{"generic_name":["IBUPROFEN"],"rxcui":["198211"]}}`),
		advice.DrugRecord(`not json`),
	}}
	catalog := NewCatalogService(memory.NewProductStore(), labels, nil, zaptest.NewLogger(t))

	_, err := catalog.Candidates(ctx, patient, "pain")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	found, err := catalog.Candidates(ctx, pro, "pain")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "198211", found[0].ProductID())
	assert.Equal(t, "aspirin", found[1].ProductID())

	_, err = catalog.Import(ctx, patient, found[0])
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	p, err := catalog.Import(ctx, pro, found[0])
	require.NoError(t, err)
	assert.Equal(t, "198211", p.ID)
	assert.Equal(t, model.ProductCategoryPrescription, p.Category)
	assert.Zero(t, p.Price)

	_, err = catalog.Import(ctx, pro, found[0])
	assert.ErrorIs(t, err, ErrProductExists)

	_, err = catalog.Import(ctx, pro, advice.Label{GenericName: "  "})
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "generic_name", ve.Field)

	// импортированное больше не предлагается
	found, err = catalog.Candidates(ctx, pro, "pain")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "aspirin", found[0].ProductID())

	list, err := catalog.List(ctx, patient)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCatalogService_SetStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pro := e.professionalSession(t, "pro")
	patient := e.patientSession(t, "pat")
	catalog := NewCatalogService(memory.NewProductStore(), stubLabels{}, nil, zaptest.NewLogger(t))

	_, err := catalog.Import(ctx, pro, advice.Label{GenericName: "Aspirin"})
	require.NoError(t, err)

	stream, err := catalog.Watch(ctx, patient)
	require.NoError(t, err)
	defer stream.Close()
	require.Len(t, nextSnapshot(t, stream), 1)

	_, err = catalog.SetStock(ctx, patient, "aspirin", 100, 1)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = catalog.SetStock(ctx, pro, "aspirin", -1, 1)
	assert.True(t, ledger.IsValidation(err))
	_, err = catalog.SetStock(ctx, pro, "missing", 1, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	p, err := catalog.SetStock(ctx, pro, "aspirin", 349, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(349), p.Price)

	snap := nextSnapshot(t, stream)
	require.Len(t, snap, 1)
	assert.Equal(t, 12, snap[0].Stock)

	got, err := catalog.Get(ctx, "aspirin")
	require.NoError(t, err)
	assert.Equal(t, int64(349), got.Price)
	_, err = catalog.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_SearchFailurePropagates(t *testing.T) {
	e := newEnv(t)
	pro := e.professionalSession(t, "pro")
	boom := errors.New("upstream down")
	catalog := NewCatalogService(memory.NewProductStore(), stubLabels{err: boom}, nil, zaptest.NewLogger(t))

	_, err := catalog.Candidates(context.Background(), pro, "x")
	assert.ErrorIs(t, err, boom)

	catalog = NewCatalogService(memory.NewProductStore(), nil, nil, zaptest.NewLogger(t))
	_, err = catalog.Candidates(context.Background(), pro, "x")
	assert.ErrorIs(t, err, ErrDrugSearchDisabled)
}
