package storage

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/pizzaparty/slices/internal/count"
	"github.com/pizzaparty/slices/internal/topping"
)

var (
	pepperoni = topping.FromBase("pepperoni")
	mushroom  = topping.FromBase("mushroom")
)

func hawaiian(t *testing.T) topping.Topping {
	t.Helper()
	top, err := topping.New("ham", "pineapple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return top
}

func TestNewMemoryStorageReturnsDefaultToppings(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	got := store.Toppings()
	want := DefaultToppings()
	if len(got) != len(want) {
		t.Fatalf("expected %d default toppings, got %d", len(want), len(got))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Fatalf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}

	// ensure mutation safety
	got[0] = "anchovy"
	if again := store.Toppings(); again[0] == "anchovy" {
		t.Fatalf("expected defensive copy, got %v", again)
	}
}

func TestSetToppingsNormalizes(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if err := store.SetToppings([]string{" olive", "ham "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []topping.Base{"olive", "ham"}
	if got := store.Toppings(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSetToppingsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tooMany := make([]string, maxToppings+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("t%d", i)
	}
	testCases := [][]string{nil, {}, {"ham", " "}, {"olive", "ham", "olive "}, tooMany}

	for idx, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage()
			if err := store.SetToppings(tc); !errors.Is(err, ErrInvalidToppings) {
				t.Fatalf("expected ErrInvalidToppings for %v, got %v", tc, err)
			}
		})
	}
}

func TestJoinAllowsSingleHost(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	host, err := store.Join(Host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host.ID == "" || host.Role != Host {
		t.Fatalf("unexpected host %+v", host)
	}
	if _, err := store.Join(Host); !errors.Is(err, ErrHostTaken) {
		t.Fatalf("expected ErrHostTaken, got %v", err)
	}
	guest, err := store.Join(Guest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guest.ID == host.ID {
		t.Fatalf("expected distinct participant ids")
	}
	if _, err := store.Join(Undetermined); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if len(store.Participants()) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(store.Participants()))
	}
}

func TestRoleTransitions(t *testing.T) {
	t.Parallel()

	if r, err := Undetermined.Transition(Guest); err != nil || r != Guest {
		t.Fatalf("expected guest, got %s (%v)", r, err)
	}
	if r, err := Host.Transition(Host); err != nil || r != Host {
		t.Fatalf("expected host to stay host, got %s (%v)", r, err)
	}
	if _, err := Guest.Transition(Host); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected guest to stay guest, got %v", err)
	}
	if _, err := ParseRole("chef"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if r, err := ParseRole(" HOST "); err != nil || r != Host {
		t.Fatalf("expected host, got %s (%v)", r, err)
	}
}

func TestSetIsLastWriteWinsPerParticipant(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	mustSet(t, store, "alice", pepperoni, 3)
	mustSet(t, store, "bob", pepperoni, 2)
	mustSet(t, store, "alice", pepperoni, 5)
	mustSet(t, store, "bob", hawaiian(t), 4)

	snap := store.Aggregate()
	if got := snap.Order.Get(pepperoni); got != 7 {
		t.Fatalf("expected 7 pepperoni slices, got %d", got)
	}
	if got := snap.Order.Get(hawaiian(t)); got != 4 {
		t.Fatalf("expected 4 hawaiian slices, got %d", got)
	}
	if snap.Participants != 2 {
		t.Fatalf("expected 2 participants, got %d", snap.Participants)
	}
	if p := store.Participants(); p[0].Role != Guest {
		t.Fatalf("expected implicit participants to be guests, got %s", p[0].Role)
	}
}

func TestSetRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if _, err := store.Set("alice", pepperoni, -1); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount, got %v", err)
	}
	if _, err := store.Set("  ", pepperoni, 1); !errors.Is(err, ErrInvalidParticipant) {
		t.Fatalf("expected ErrInvalidParticipant, got %v", err)
	}
	if _, err := store.Set("alice", topping.Topping{}, 1); !errors.Is(err, topping.ErrEmptyTopping) {
		t.Fatalf("expected ErrEmptyTopping, got %v", err)
	}
}

func TestAddClampsAtZero(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	value, err := store.Add("alice", mushroom, 2)
	if err != nil || value != 2 {
		t.Fatalf("expected 2, got %d (%v)", value, err)
	}
	value, err = store.Add("alice", mushroom, -5)
	if err != nil || value != 0 {
		t.Fatalf("expected 0, got %d (%v)", value, err)
	}
}

func TestAggregateSeedsPlainToppingsAndDropsZeroComposites(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	mustSet(t, store, "alice", hawaiian(t), 0)
	mustSet(t, store, "alice", mushroom, 1)

	order := store.Aggregate().Order
	for _, name := range DefaultToppings() {
		if !order.Has(topping.FromBase(topping.Base(name))) {
			t.Fatalf("expected %s to be offered", name)
		}
	}
	if order.Has(hawaiian(t)) {
		t.Fatalf("expected zero composite to be dropped")
	}
}

func TestVersionIncreasesOnEveryUpdate(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	v0 := store.Aggregate().Version
	mustSet(t, store, "alice", pepperoni, 1)
	v1 := store.Aggregate().Version
	if err := store.Remove("alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2 := store.Aggregate().Version
	if !(v0 < v1 && v1 < v2) {
		t.Fatalf("expected increasing versions, got %d %d %d", v0, v1, v2)
	}
	if err := store.Remove("alice"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	host, err := store.Join(Host)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustSet(t, store, host.ID, pepperoni, 6)
	mustSet(t, store, "bob", hawaiian(t), 2)

	var buf bytes.Buffer
	if err := store.Save(&buf); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	restored := NewMemoryStorage()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !count.Equal(store.Aggregate().Order, restored.Aggregate().Order) {
		t.Fatalf("expected restored aggregate to match")
	}
	if _, err := restored.Join(Host); !errors.Is(err, ErrHostTaken) {
		t.Fatalf("expected host role to survive a round trip, got %v", err)
	}
}

func TestLoadExcludesUndecodableKeysFromAggregate(t *testing.T) {
	t.Parallel()

	state := `participants:
  alice:
    role: guest
    toppings:
      "9:pepperoni": 4
      "not-a-key": 7
`
	store := NewMemoryStorage()
	if err := store.Load(strings.NewReader(state)); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	order := store.Aggregate().Order
	if order.Total() != 4 {
		t.Fatalf("expected only decodable demand in the aggregate, got %d", order.Total())
	}
	if store.Undecodable() != 1 {
		t.Fatalf("expected one undecodable entry, got %d", store.Undecodable())
	}
}

func TestLoadRejectsInvalidState(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad role":  "participants:\n  a:\n    role: chef\n",
		"two hosts": "participants:\n  a:\n    role: host\n  b:\n    role: host\n",
		"bad yaml":  "participants: [",
	}
	for name, state := range cases {
		state := state
		t.Run(name, func(t *testing.T) {
			if err := NewMemoryStorage().Load(strings.NewReader(state)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSaveFileAndLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yaml")
	store := NewMemoryStorage()
	if err := store.LoadFile(path); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	mustSet(t, store, "alice", pepperoni, 3)
	if err := store.SaveFile(path); err != nil {
		t.Fatalf("SaveFile returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file: %v", err)
	}

	restored := NewMemoryStorage()
	if err := restored.LoadFile(path); err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	if got := restored.Aggregate().Order.Get(pepperoni); got != 3 {
		t.Fatalf("expected 3 pepperoni slices, got %d", got)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", offset%4)
			if _, err := store.Set(id, pepperoni, offset); err != nil {
				t.Errorf("Set failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			_ = store.Aggregate()
		}()
	}

	wg.Wait()

	if got := len(store.Participants()); got != 4 {
		t.Fatalf("expected 4 participants, got %d", got)
	}
}

func mustSet(t *testing.T, store *MemoryStorage, id string, top topping.Topping, value int) {
	t.Helper()
	if _, err := store.Set(id, top, value); err != nil {
		t.Fatalf("Set(%s, %s, %d) returned error: %v", id, top, value, err)
	}
}

func TestSetRejectsCountsAboveLimit(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	for _, value := range []int{MaxSlices + 1, math.MaxInt} {
		if _, err := store.Set("alice", pepperoni, value); !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("expected ErrInvalidCount for %d, got %v", value, err)
		}
	}
	if len(store.Participants()) != 0 {
		t.Fatalf("expected rejected updates not to register a participant")
	}

	mustSet(t, store, "alice", pepperoni, MaxSlices-1)
	if _, err := store.Set("alice", mushroom, 2); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected the participant total to be bounded, got %v", err)
	}
	// Replacing an existing value only counts the difference.
	mustSet(t, store, "alice", pepperoni, MaxSlices-2)
	mustSet(t, store, "alice", mushroom, 2)
}

func TestAddRejectsCountsAboveLimit(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if _, err := store.Add("alice", pepperoni, math.MaxInt); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount, got %v", err)
	}
	mustSet(t, store, "alice", pepperoni, MaxSlices)
	if _, err := store.Add("alice", pepperoni, 1); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount past the limit, got %v", err)
	}
	value, err := store.Add("alice", pepperoni, math.MinInt)
	if err != nil || value != 0 {
		t.Fatalf("expected clamp at zero, got %d (%v)", value, err)
	}
}

func TestAggregateOfBoundedCountsNeverOverflows(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if _, err := store.Set("a", pepperoni, math.MaxInt); err == nil {
		t.Fatalf("expected an unbounded count to be rejected")
	}
	mustSet(t, store, "a", pepperoni, MaxSlices)
	mustSet(t, store, "b", pepperoni, MaxSlices)

	order := store.Aggregate().Order
	if got := order.Get(pepperoni); got != 2*MaxSlices {
		t.Fatalf("expected %d pepperoni slices, got %d", 2*MaxSlices, got)
	}
	if order.Total() != 2*MaxSlices {
		t.Fatalf("expected total %d, got %d", 2*MaxSlices, order.Total())
	}
}

func TestPartySizeIsBounded(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	for i := 0; i < MaxParticipants; i++ {
		if _, err := store.Join(Guest); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if _, err := store.Join(Guest); !errors.Is(err, ErrPartyFull) {
		t.Fatalf("expected ErrPartyFull, got %v", err)
	}
	if _, err := store.Set("latecomer", pepperoni, 1); !errors.Is(err, ErrPartyFull) {
		t.Fatalf("expected ErrPartyFull for an implicit join, got %v", err)
	}
}

func TestLoadRejectsCountsAboveLimit(t *testing.T) {
	t.Parallel()

	state := fmt.Sprintf("participants:\n  alice:\n    role: guest\n    toppings:\n      \"9:pepperoni\": %d\n", MaxSlices+1)
	store := NewMemoryStorage()
	if err := store.Load(strings.NewReader(state)); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("expected ErrInvalidCount, got %v", err)
	}
}
