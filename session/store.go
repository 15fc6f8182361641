package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"voxscribe/log"
)

const DefaultNamespace = "voxscribe_sessions"

// CorruptSuffix names the key an undecodable session array is moved to
// before the store starts over.
const CorruptSuffix = "_corrupt"

// Store persists the whole session list as one JSON array under a single
// key. Every mutation reads and rewrites the array; mu queues concurrent
// writers so no update is lost.
type Store struct {
	backend Backend
	key     string
	loc     *time.Location

	mu sync.Mutex
}

type Option func(*Store)

func WithNamespace(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLocation sets the zone used for dates in exported transcripts.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, key: DefaultNamespace, loc: time.Local}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Namespace() string { return s.key }

func (s *Store) Location() *time.Location { return s.loc }

// List returns every stored session, newest first. Missing, unreadable or
// undecodable data yields an empty list.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		log.Warnf("reading sessions: %v", err)
		return []Session{}
	}
	sessions, _, err := decode(data)
	if err != nil {
		log.StorageReset(s.key, err)
		return []Session{}
	}
	return sessions
}

// read returns the stored array, or nil when the key has never been written.
func (s *Store) read() ([]byte, error) {
	data, err := s.backend.Load(s.key)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	return data, nil
}

// decode splits the stored array into valid sessions and the raw records
// that failed to decode or validate.
func decode(data []byte) ([]Session, []json.RawMessage, error) {
	if data == nil {
		return []Session{}, nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	sessions := make([]Session, 0, len(raw))
	var rejected []json.RawMessage
	for i, r := range raw {
		var sess Session
		if err := json.Unmarshal(r, &sess); err != nil {
			log.Warnf("skipping stored session %d: %v", i, err)
			rejected = append(rejected, r)
			continue
		}
		if err := sess.Validate(); err != nil {
			log.Warnf("skipping stored session %d: %v", i, err)
			rejected = append(rejected, r)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, rejected, nil
}

// loadForWrite reads the list a mutation starts from. A backend failure
// aborts the mutation. An undecodable array is moved aside under
// "<key>_corrupt" and the mutation starts from an empty list.
func (s *Store) loadForWrite() ([]Session, []json.RawMessage, error) {
	data, err := s.read()
	if err != nil {
		return nil, nil, err
	}
	sessions, rejected, err := decode(data)
	if err == nil {
		return sessions, rejected, nil
	}
	log.StorageReset(s.key, err)
	if err := s.backend.Save(s.key+CorruptSuffix, data); err != nil {
		return nil, nil, fmt.Errorf("preserving unreadable sessions: %w", err)
	}
	return []Session{}, nil, nil
}

// save writes sessions followed by the records decode could not accept,
// so a rewrite never loses data it did not understand.
func (s *Store) save(sessions []Session, rejected []json.RawMessage) error {
	records := make([]json.RawMessage, 0, len(sessions)+len(rejected))
	for _, sess := range sessions {
		b, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encoding session %s: %w", sess.ID, err)
		}
		records = append(records, b)
	}
	records = append(records, rejected...)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	if err := s.backend.Save(s.key, data); err != nil {
		return fmt.Errorf("saving sessions: %w", err)
	}
	return nil
}

// Create validates sess and puts it at the head of the list.
func (s *Store) Create(sess *Session) error {
	if sess == nil {
		return fmt.Errorf("%w: nil", ErrInvalid)
	}
	if err := sess.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, rejected, err := s.loadForWrite()
	if err != nil {
		return err
	}
	for _, existing := range current {
		if existing.ID == sess.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, sess.ID)
		}
	}
	updated := make([]Session, 0, len(current)+1)
	updated = append(updated, *sess)
	updated = append(updated, current...)
	return s.save(updated, rejected)
}

func (s *Store) Get(id string) (*Session, error) {
	for _, sess := range s.List() {
		if sess.ID == id {
			return &sess, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, rejected, err := s.loadForWrite()
	if err != nil {
		return err
	}
	updated := make([]Session, 0, len(current))
	found := false
	for _, sess := range current {
		if sess.ID == id {
			found = true
			continue
		}
		updated = append(updated, sess)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.save(updated, rejected)
}

// Find resolves a full id or a unique id prefix, as typed on the command line.
func (s *Store) Find(prefix string) (*Session, error) {
	var match *Session
	for _, sess := range s.List() {
		if sess.ID == prefix {
			return &sess, nil
		}
		if prefix != "" && len(sess.ID) >= len(prefix) && sess.ID[:len(prefix)] == prefix {
			if match != nil {
				return nil, fmt.Errorf("ambiguous id prefix %q", prefix)
			}
			found := sess
			match = &found
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return match, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
