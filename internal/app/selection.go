package app

// Selection management. The service owns the selection exclusively; batch
// operations read a snapshot of it and clear it per the processed>0 rule.

// Select adds account IDs to the selection, preserving insertion order and
// ignoring duplicates.
func (s *Service) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.selected[id]; ok {
			continue
		}
		s.selected[id] = struct{}{}
		s.selection = append(s.selection, id)
	}
}

// Deselect removes one account ID from the selection.
func (s *Service) Deselect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; !ok {
		return
	}
	delete(s.selected, id)
	for i, key := range s.selection {
		if key == id {
			s.selection = append(s.selection[:i], s.selection[i+1:]...)
			break
		}
	}
}

// SetSelection replaces the selection wholesale.
func (s *Service) SetSelection(ids []string) {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.selection = s.selection[:0]
	s.mu.Unlock()
	s.Select(ids...)
}

// SelectedKeys returns the selection snapshot in insertion order.
func (s *Service) SelectedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.selection))
	copy(keys, s.selection)
	return keys
}

// ClearSelection empties the selection.
func (s *Service) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]struct{})
	s.selection = nil
}
