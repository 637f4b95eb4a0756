package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
	"github.com/rohith-arumugam/truck-racing/internal/track"
)

func newTestSession(t *testing.T) *domain.Session {
	t.Helper()
	session, err := domain.CreateSession(track.NewGeneratorWithSeed(5).GenerateSet(domain.Laps), nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestGetMissingSession(t *testing.T) {
	s := New()

	if _, err := s.Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get error = %v, want ErrNotFound", err)
	}
}

func TestPutAndGetReturnsCopy(t *testing.T) {
	s := New()
	session := newTestSession(t)
	s.Put(session)

	got, err := s.Get(session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	got.Phase = domain.PhaseCompleted
	got.Participant(session.HostID).CurrentLap = 9

	again, err := s.Get(session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if again.Phase != domain.PhaseWaiting {
		t.Fatal("mutating a Get result must not change resident state")
	}
	if again.Participant(session.HostID).CurrentLap != 0 {
		t.Fatal("mutating a Get result must not change resident participants")
	}
}

func TestPutIfAbsentKeepsResidentSession(t *testing.T) {
	s := New()
	resident := newTestSession(t)
	s.Put(resident)

	err := s.CompareAndApply(resident.ID, func(session *domain.Session) error {
		session.Phase = domain.PhaseRacing
		return nil
	})
	if err != nil {
		t.Fatalf("compare and apply: %v", err)
	}

	stale := resident.Clone()
	stale.Phase = domain.PhaseWaiting
	got := s.PutIfAbsent(stale)
	if got.Phase != domain.PhaseRacing {
		t.Fatalf("resident phase = %v, want %v", got.Phase, domain.PhaseRacing)
	}
}

func TestCompareAndApplyMissingSession(t *testing.T) {
	s := New()

	err := s.CompareAndApply("absent", func(*domain.Session) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCompareAndApplySerializesPerSession(t *testing.T) {
	s := New()
	session := newTestSession(t)
	s.Put(session)

	const workers = 16
	const increments = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				_ = s.CompareAndApply(session.ID, func(live *domain.Session) error {
					live.Participant(session.HostID).CurrentLap++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if lap := got.Participant(session.HostID).CurrentLap; lap != workers*increments {
		t.Fatalf("current lap = %d, want %d", lap, workers*increments)
	}
}

func TestCompareAndApplyErrorIsPropagated(t *testing.T) {
	s := New()
	session := newTestSession(t)
	s.Put(session)

	wantErr := errors.New("rejected")
	err := s.CompareAndApply(session.ID, func(*domain.Session) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}
