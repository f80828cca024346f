package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusReceived, false},
		{StatusPending, StatusPreparing, false},
		{StatusReceived, StatusPreparing, true},
		{StatusReceived, StatusReady, true},
		{StatusReceived, StatusCancelled, true},
		{StatusReceived, StatusDelivered, false},
		{StatusPreparing, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusPreparing, StatusCancelled, true},
		{StatusPreparing, StatusDelivered, false},
		{StatusReady, StatusDelivered, true},
		{StatusReady, StatusCancelled, false},
		{StatusReady, StatusPreparing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusReady, false},
		{StatusCancelled, StatusPreparing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionRejectsAndLeavesOrderUntouched(t *testing.T) {
	for _, from := range []Status{StatusReady, StatusDelivered} {
		t.Run(string(from), func(t *testing.T) {
			o := &Order{ID: "o1", Status: from, TimerAccumulatedSeconds: 42}
			before := *o

			_, effects, err := Transition(o, StatusCancelled, ActorAdmin, at(0))

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, from, te.From)
			assert.Equal(t, StatusCancelled, te.To)
			assert.Nil(t, effects)
			assert.Equal(t, before, *o)
		})
	}
}

func TestTransitionRejectsUnknownActor(t *testing.T) {
	_, _, err := Transition(&Order{Status: StatusReceived}, StatusPreparing, Actor("robot"), at(0))
	assert.ErrorIs(t, err, ErrUnknownActor)
}

func TestTransitionPreparingReentryIsNoop(t *testing.T) {
	started := at(0)
	o := &Order{Status: StatusPreparing, TimerAccumulatedSeconds: 12, TimerLastStartedAt: &started}

	patch, effects, err := Transition(o, StatusPreparing, ActorAdmin, at(30))
	require.NoError(t, err)
	assert.True(t, patch.Noop)
	assert.Empty(t, effects)

	applied := patch.Apply(o)
	assert.Equal(t, int64(12), applied.TimerAccumulatedSeconds)
	assert.True(t, applied.TimerLastStartedAt.Equal(started))
}

func TestTransitionResumesPausedTimerSilently(t *testing.T) {
	o := &Order{Status: StatusPreparing, TimerAccumulatedSeconds: 20}

	patch, effects, err := Transition(o, StatusPreparing, ActorAdmin, at(50))
	require.NoError(t, err)
	assert.False(t, patch.Noop)
	assert.Empty(t, effects)
	require.NotNil(t, patch.Timer.LastStartedAt)
	assert.True(t, patch.Timer.LastStartedAt.Equal(at(50)))
	assert.Equal(t, int64(20), patch.Timer.AccumulatedSeconds)
}

func TestTransitionReadyReentryDoesNotRenotify(t *testing.T) {
	o := &Order{Status: StatusReady, TimerAccumulatedSeconds: 90}

	patch, effects, err := Transition(o, StatusReady, ActorAdmin, at(500))
	require.NoError(t, err)
	assert.True(t, patch.Noop)
	assert.Empty(t, effects)
	assert.Equal(t, int64(90), patch.Apply(o).TimerAccumulatedSeconds)
}

func TestTransitionSideEffects(t *testing.T) {
	tests := []struct {
		name     string
		order    *Order
		target   Status
		actor    Actor
		want     []SideEffect
		cancelBy *Actor
	}{
		{
			name:   "preparing notifies",
			order:  &Order{Status: StatusReceived, OrderType: OrderTypeTakeAway},
			target: StatusPreparing,
			actor:  ActorAdmin,
			want:   []SideEffect{{Kind: EffectNotify, Channel: ChannelSMS, TemplateKey: StatusPreparing, OrderType: OrderTypeTakeAway}},
		},
		{
			name:   "delivery ready carries order type",
			order:  &Order{Status: StatusPreparing, OrderType: OrderTypeDelivery},
			target: StatusReady,
			actor:  ActorAdmin,
			want:   []SideEffect{{Kind: EffectNotify, Channel: ChannelSMS, TemplateKey: StatusReady, OrderType: OrderTypeDelivery}},
		},
		{
			name:     "admin cancel notifies",
			order:    &Order{Status: StatusPending, OrderType: OrderTypeEatIn},
			target:   StatusCancelled,
			actor:    ActorAdmin,
			want:     []SideEffect{{Kind: EffectNotify, Channel: ChannelSMS, TemplateKey: StatusCancelled, OrderType: OrderTypeEatIn, CancelledBy: lo.ToPtr(ActorAdmin)}},
			cancelBy: lo.ToPtr(ActorAdmin),
		},
		{
			name:     "customer cancel is silent",
			order:    &Order{Status: StatusReceived},
			target:   StatusCancelled,
			actor:    ActorCustomer,
			want:     nil,
			cancelBy: lo.ToPtr(ActorCustomer),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch, effects, err := Transition(tt.order, tt.target, tt.actor, at(0))
			require.NoError(t, err)
			assert.Equal(t, tt.want, effects)
			assert.Equal(t, tt.target, *patch.Status)
			assert.Equal(t, tt.cancelBy, patch.CancelledBy)
		})
	}
}

func TestConfirmCart(t *testing.T) {
	o := &Order{Status: StatusPending}
	items := []LineItem{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.NewFromInt(1000)},
	}

	patch, err := ConfirmCart(o, items)
	require.NoError(t, err)
	confirmed := patch.Apply(o)
	assert.Equal(t, StatusReceived, confirmed.Status)
	assert.True(t, decimal.NewFromInt(2000).Equal(*confirmed.Total))
	assert.Equal(t, StatusPending, o.Status)

	_, err = ConfirmCart(confirmed, items)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirmCartValidation(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		want  error
	}{
		{name: "empty", items: nil, want: ErrCartEmpty},
		{name: "zero quantity", items: []LineItem{{Quantity: 0, UnitPrice: decimal.NewFromInt(1)}}, want: ErrInvalidQuantity},
		{name: "negative price", items: []LineItem{{Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}, want: ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfirmCart(&Order{Status: StatusPending}, tt.items)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPauseTimer(t *testing.T) {
	started := at(0)
	o := &Order{Status: StatusPreparing, TimerAccumulatedSeconds: 5, TimerLastStartedAt: &started}

	patch, err := PauseTimer(o, at(25))
	require.NoError(t, err)
	assert.Equal(t, TimerState{AccumulatedSeconds: 30}, *patch.Timer)

	again, err := PauseTimer(patch.Apply(o), at(90))
	require.NoError(t, err)
	assert.True(t, again.Noop)

	_, err = PauseTimer(&Order{Status: StatusReady}, at(0))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReadyAfterShortPauseKeepsPreparedTime(t *testing.T) {
	o := &Order{Status: StatusReceived, CreatedAt: at(0)}

	patch, _, err := Transition(o, StatusPreparing, ActorAdmin, at(100))
	require.NoError(t, err)
	o = patch.Apply(o)

	pause, err := PauseTimer(o, at(100).Add(500*time.Millisecond))
	require.NoError(t, err)
	o = pause.Apply(o)
	require.Nil(t, o.TimerLastStartedAt)
	require.Zero(t, o.TimerAccumulatedSeconds)

	patch, _, err = Transition(o, StatusReady, ActorAdmin, at(200))
	require.NoError(t, err)
	o = patch.Apply(o)
	assert.Zero(t, o.TimerAccumulatedSeconds)

	patch, _, err = Transition(o, StatusDelivered, ActorAdmin, at(300))
	require.NoError(t, err)
	assert.Zero(t, patch.Apply(o).TimerAccumulatedSeconds)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("READY")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s)

	_, err = ParseStatus("ready")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
