package claim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

func TestMachine_InitialState(t *testing.T) {
	m := NewMachine("flow-1")
	snap := m.Snapshot()

	assert.Equal(t, "flow-1", snap.ID)
	assert.Equal(t, models.UploadStatusIdle, snap.Status)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Claim)

	_, ok := m.Source()
	assert.False(t, ok)
}

func TestMachine_BeginRejectsOverlappingUpload(t *testing.T) {
	m := NewMachine("flow-1")

	gen, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, uint64(1), gen)

	_, err = m.Begin()
	require.NotNil(t, err)
	assert.Equal(t, KindBusy, err.Kind)
	assert.Equal(t, uint64(1), m.Snapshot().Generation)

	m.Apply(Event{Kind: EventUploadFinished, Generation: gen})
	gen2, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, uint64(2), gen2)
}

func TestMachine_ApplyCannotStartUpload(t *testing.T) {
	m := NewMachine("flow-1")
	assert.False(t, m.Apply(Event{Kind: EventUploadStarted, Generation: 7}))
	assert.Equal(t, models.UploadStatusIdle, m.Snapshot().Status)
}

func TestMachine_StaleEventsIgnored(t *testing.T) {
	m := NewMachine("flow-1")
	first, _ := m.Begin()
	m.Apply(Event{Kind: EventUploadFinished, Generation: first})
	second, _ := m.Begin()

	assert.False(t, m.Apply(Event{Kind: EventChunkReceived, Generation: first, Text: "old"}))
	assert.False(t, m.Apply(Event{Kind: EventToastShown, Generation: first}))
	assert.True(t, m.Apply(Event{Kind: EventChunkReceived, Generation: second, Text: "new"}))

	snap := m.Snapshot()
	assert.Equal(t, "new", snap.Description)
	assert.False(t, snap.ShowToast)
}

func TestMachine_DropAndSampleAreExclusive(t *testing.T) {
	m := NewMachine("flow-1")
	p := NewPicker(m, &fakeLister{names: []string{"flood.jpg"}})
	_, err := p.Load(context.Background())
	require.NoError(t, err)

	require.True(t, m.Drop(Image{Name: "dent.png", Data: []byte("png")}))
	src, ok := m.Source()
	require.True(t, ok)
	assert.Equal(t, models.SourceDropped, src.Kind)

	// Highlighting alone does not replace the dropped file.
	require.True(t, p.Highlight("/sample_photos/flood.jpg"))
	src, _ = m.Source()
	assert.Equal(t, models.SourceDropped, src.Kind)

	require.True(t, p.Confirm())
	src, ok = m.Source()
	require.True(t, ok)
	assert.Equal(t, models.SourceSample, src.Kind)
	assert.Equal(t, "/sample_photos/flood.jpg", src.Ref)
	assert.Nil(t, src.Image)
	assert.Equal(t, "/sample_photos/flood.jpg", m.Snapshot().Preview)

	require.True(t, m.Drop(Image{Name: "hail.png"}))
	src, _ = m.Source()
	assert.Equal(t, models.SourceDropped, src.Kind)
	assert.Empty(t, src.Ref)
	snap := m.Snapshot()
	assert.Empty(t, snap.Highlighted)
	assert.Equal(t, "hail.png", snap.Preview)
}

func TestMachine_ConfirmWithoutHighlightIsNoop(t *testing.T) {
	m := NewMachine("flow-1")
	p := NewPicker(m, &fakeLister{})

	m.Drop(Image{Name: "dent.png"})
	assert.False(t, p.Confirm())

	src, _ := m.Source()
	assert.Equal(t, models.SourceDropped, src.Kind)
}

func TestMachine_ConfirmClearsDescription(t *testing.T) {
	m := NewMachine("flow-1")
	gen, _ := m.Begin()
	m.Apply(Event{Kind: EventChunkReceived, Generation: gen, Text: "old text"})
	m.Apply(Event{Kind: EventUploadFinished, Generation: gen})

	p := NewPicker(m, &fakeLister{names: []string{"a.jpg"}})
	_, err := p.Load(context.Background())
	require.NoError(t, err)
	require.True(t, p.Highlight("/sample_photos/a.jpg"))
	p.Confirm()

	snap := m.Snapshot()
	assert.Empty(t, snap.Description)
	assert.False(t, snap.ShowDescription)
}

func TestMachine_ClaimSurvivesNextUpload(t *testing.T) {
	m := NewMachine("flow-1")
	gen, _ := m.Begin()
	m.Apply(Event{Kind: EventClaimResolved, Generation: gen, Claim: &models.ClaimDetails{Description: "hail"}})
	m.Apply(Event{Kind: EventUploadFinished, Generation: gen})

	_, err := m.Begin()
	require.Nil(t, err)

	snap := m.Snapshot()
	require.NotNil(t, snap.Claim)
	assert.Equal(t, "hail", snap.Claim.Description)
	assert.False(t, snap.ShowClaim)
	assert.Empty(t, snap.Description)
	assert.Equal(t, models.UploadStatusSending, snap.Status)
}

func TestMachine_SnapshotIsACopy(t *testing.T) {
	m := NewMachine("flow-1")
	gen, _ := m.Begin()
	m.Apply(Event{Kind: EventClaimResolved, Generation: gen, Claim: &models.ClaimDetails{
		Description:    "d",
		Recommendation: []string{"one"},
	}})

	snap := m.Snapshot()
	snap.Claim.Recommendation[0] = "mutated"
	assert.Equal(t, "one", m.Snapshot().Claim.Recommendation[0])
}

func TestMachine_ListenersSeeEveryAppliedEvent(t *testing.T) {
	m := NewMachine("flow-1")
	var kinds []EventKind
	m.Subscribe(func(ev Event, snap models.FlowSnapshot) {
		kinds = append(kinds, ev.Kind)
	})

	gen, _ := m.Begin()
	m.Apply(Event{Kind: EventChunkReceived, Generation: gen, Text: "x"})
	m.Apply(Event{Kind: EventChunkReceived, Generation: gen + 1, Text: "stale"})
	m.Apply(Event{Kind: EventUploadFinished, Generation: gen})

	assert.Equal(t, []EventKind{EventUploadStarted, EventChunkReceived, EventUploadFinished}, kinds)
}
