package scorestore

import "sync"

// MemoryScoreboard is an in-memory Scoreboard implementation. It backs the
// Direct store in embedded deployments and stands in for the host objective
// API in tests. Safe for concurrent use.
type MemoryScoreboard struct {
	mu         sync.RWMutex
	objectives map[string]*memoryObjective
}

// NewMemoryScoreboard creates an empty in-memory scoreboard.
func NewMemoryScoreboard() *MemoryScoreboard {
	return &MemoryScoreboard{objectives: make(map[string]*memoryObjective)}
}

// AddObjective creates an objective, returning the existing one if the name
// is already taken (matching host behavior, where re-adding is harmless).
func (m *MemoryScoreboard) AddObjective(name, displayName string) (Objective, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objectives[name]; ok {
		return obj, nil
	}
	obj := &memoryObjective{name: name, displayName: displayName, scores: make(map[string]int32)}
	m.objectives[name] = obj
	return obj, nil
}

// GetObjective returns the named objective or ErrNotFound.
func (m *MemoryScoreboard) GetObjective(name string) (Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objectives[name]
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

// RemoveObjective drops an objective and all its scores. Used by embedded
// hosts for table teardown; removing an absent objective is a no-op.
func (m *MemoryScoreboard) RemoveObjective(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objectives, name)
}

type memoryObjective struct {
	mu          sync.RWMutex
	name        string
	displayName string
	scores      map[string]int32
}

func (o *memoryObjective) Name() string { return o.name }

func (o *memoryObjective) SetScore(participant string, value int32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scores[participant] = value
	return nil
}

func (o *memoryObjective) Score(participant string) (int32, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	score, ok := o.scores[participant]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (o *memoryObjective) Participants() ([]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.scores))
	for p := range o.scores {
		names = append(names, p)
	}
	return names, nil
}

func (o *memoryObjective) HasParticipant(participant string) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.scores[participant]
	return ok, nil
}

func (o *memoryObjective) RemoveParticipant(participant string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.scores, participant)
	return nil
}
