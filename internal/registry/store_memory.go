package registry

import (
	"context"
	"sync"

	"examledger/internal/exam"
	"examledger/pkg/domain"
)

type historyKey struct {
	participant domain.Address
	code        domain.ExamCode
}

type certificateKey struct {
	participant   domain.Address
	certificateID domain.CertificateID
}

// MemoryStore keeps the registry state in process memory. Default wiring;
// it intentionally favors clarity over performance.
type MemoryStore struct {
	mu           sync.RWMutex
	exams        map[domain.ExamCode]exam.Record
	order        []domain.ExamCode
	recognized   map[domain.Address]bool
	history      map[domain.Address][]HistoryEntry
	historyIndex map[historyKey]int
	certToExam   map[certificateKey]domain.ExamCode
	examToCert   map[historyKey]domain.CertificateID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exams:        make(map[domain.ExamCode]exam.Record),
		recognized:   make(map[domain.Address]bool),
		history:      make(map[domain.Address][]HistoryEntry),
		historyIndex: make(map[historyKey]int),
		certToExam:   make(map[certificateKey]domain.ExamCode),
		examToCert:   make(map[historyKey]domain.CertificateID),
	}
}

func (s *MemoryStore) SaveExam(_ context.Context, record exam.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[record.Config.Code]; ok {
		return ErrDuplicate
	}
	s.exams[record.Config.Code] = record
	s.order = append(s.order, record.Config.Code)
	return nil
}

func (s *MemoryStore) DeleteExam(_ context.Context, code domain.ExamCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[code]; !ok {
		return ErrNotFound
	}
	delete(s.exams, code)
	for i, c := range s.order {
		if c == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) GetExam(_ context.Context, code domain.ExamCode) (exam.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.exams[code]; ok {
		return record, nil
	}
	return exam.Record{}, ErrNotFound
}

func (s *MemoryStore) ListExams(_ context.Context, offset, limit int) ([]exam.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.order)
	if offset >= total {
		return []exam.Record{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	records := make([]exam.Record, 0, end-offset)
	for _, code := range s.order[offset:end] {
		records = append(records, s.exams[code])
	}
	return records, total, nil
}

func (s *MemoryStore) Recognize(_ context.Context, instance domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recognized[instance] = true
	return nil
}

func (s *MemoryStore) IsRecognized(_ context.Context, instance domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recognized[instance], nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, participant domain.Address, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[participant] = append(s.history[participant], entry)
	s.historyIndex[historyKey{participant, entry.ExamCode}] = len(s.history[participant]) - 1
	return nil
}

func (s *MemoryStore) UpdateHistory(_ context.Context, participant domain.Address, code domain.ExamCode, result exam.Result, status domain.ParticipantStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.historyIndex[historyKey{participant, code}]
	if !ok {
		return ErrNotFound
	}
	entries := s.history[participant]
	entries[pos].Result = result
	entries[pos].Status = status
	return nil
}

func (s *MemoryStore) HistoryFor(_ context.Context, participant domain.Address) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryEntry{}, s.history[participant]...), nil
}

func (s *MemoryStore) HistoryEntry(_ context.Context, participant domain.Address, code domain.ExamCode) (HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.historyIndex[historyKey{participant, code}]
	if !ok {
		return HistoryEntry{}, ErrNotFound
	}
	return s.history[participant][pos], nil
}

func (s *MemoryStore) LinkCredential(_ context.Context, participant domain.Address, code domain.ExamCode, certificateID domain.CertificateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certToExam[certificateKey{participant, certificateID}] = code
	s.examToCert[historyKey{participant, code}] = certificateID
	return nil
}

func (s *MemoryStore) ExamForCertificate(_ context.Context, participant domain.Address, certificateID domain.CertificateID) (domain.ExamCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if code, ok := s.certToExam[certificateKey{participant, certificateID}]; ok {
		return code, nil
	}
	return "", ErrNotFound
}

func (s *MemoryStore) CertificateFor(_ context.Context, participant domain.Address, code domain.ExamCode) (domain.CertificateID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.examToCert[historyKey{participant, code}]; ok {
		return id, nil
	}
	return "", ErrNotFound
}
