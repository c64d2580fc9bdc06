package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/lock"
)

// MemoryStore keeps patients and appointments in process memory. It enforces
// the same uniqueness rules as the postgres schema and is safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	patients     map[string]*Patient // by email
	appointments map[string]*Appointment
	holders      map[lock.SlotKey]string // slot -> appointment id, pending/confirmed only
	events       []EventLog
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:     make(map[string]*Patient),
		appointments: make(map[string]*Appointment),
		holders:      make(map[lock.SlotKey]string),
		now:          time.Now,
	}
}

func slotOf(a *Appointment) lock.SlotKey {
	return lock.SlotKey{Provider: a.Provider, Date: a.Date, Time: a.Time}
}

func (m *MemoryStore) FindPatientByEmail(_ context.Context, email string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patients[email]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) InsertPatient(_ context.Context, p Patient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patients[p.Email]; ok {
		return nil, ErrPatientExists
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	stored := p
	m.patients[p.Email] = &stored
	return &p, nil
}

func (m *MemoryStore) InsertAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[appt.ID]; ok {
		return nil, ErrDuplicateAppointmentID
	}
	if _, ok := m.patients[appt.Patient.Email]; !ok {
		return nil, ErrPatientNotFound
	}

	key := slotOf(&appt)
	if appt.Status.Holds() {
		if _, taken := m.holders[key]; taken {
			return nil, ErrSlotUnavailable
		}
		m.holders[key] = appt.ID
	}

	stored := appt
	m.appointments[appt.ID] = &stored
	return &appt, nil
}

func (m *MemoryStore) IsSlotTaken(_ context.Context, provider, date, t string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, taken := m.holders[lock.SlotKey{Provider: provider, Date: date, Time: t}]
	return taken, nil
}

func (m *MemoryStore) GetAppointment(_ context.Context, id string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status AppointmentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return false, nil
	}

	key := slotOf(a)
	switch {
	case a.Status.Holds() && !status.Holds():
		delete(m.holders, key)
	case !a.Status.Holds() && status.Holds():
		if holder, taken := m.holders[key]; taken && holder != id {
			return false, ErrSlotUnavailable
		}
		m.holders[key] = id
	}

	a.Status = status
	return true, nil
}

func (m *MemoryStore) DeleteByAppointmentID(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return false, nil
	}
	m.removeLocked(a)
	return true, nil
}

func (m *MemoryStore) DeleteAllByPatientEmail(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.appointments {
		if a.Patient.Email == email {
			m.removeLocked(a)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) removeLocked(a *Appointment) {
	key := slotOf(a)
	if holder, ok := m.holders[key]; ok && holder == a.ID {
		delete(m.holders, key)
	}
	delete(m.appointments, a.ID)
}

func (m *MemoryStore) ListAllAppointments(_ context.Context) ([]Appointment, error) {
	m.mu.RLock()
	result := make([]Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		cp := *a
		// listing reflects the directory's current name, like the joined SQL query
		if p, ok := m.patients[a.Patient.Email]; ok {
			cp.Patient.Name = p.Name
		}
		result = append(result, cp)
	}
	m.mu.RUnlock()

	sortForListing(result)
	return result, nil
}

func (m *MemoryStore) ListPendingBookedBefore(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusPending && a.BookedAt.Before(cutoff) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BookedAt.Before(result[j].BookedAt) })
	return result, nil
}

func (m *MemoryStore) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryStore) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]EventLog(nil), m.events...)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// sortForListing orders appointments by calendar date, newest first, then by
// booking time, newest first.
func sortForListing(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		di, _ := time.Parse(DateLayout, appts[i].Date)
		dj, _ := time.Parse(DateLayout, appts[j].Date)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		if !appts[i].BookedAt.Equal(appts[j].BookedAt) {
			return appts[i].BookedAt.After(appts[j].BookedAt)
		}
		return appts[i].ID < appts[j].ID
	})
}
