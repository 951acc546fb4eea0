package cache

// Push prepends value to the list at key, creating the list if needed.
func (s *Store) Push(key string, value Payload) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(key, data)
	return nil
}

// Trim keeps only the elements in the inclusive index range [start, stop].
// Negative indices count from the end (-1 is the last element), as in Redis LTRIM.
// An empty resulting range removes the list.
func (s *Store) Trim(key string, start, stop int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trimLocked(key, start, stop)
}

// PushBounded prepends value and trims the list to at most max elements in one critical section.
func (s *Store) PushBounded(key string, value Payload, max int) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(key, data)
	if max > 0 {
		s.trimLocked(key, 0, max-1)
	}
	return nil
}

// Range returns the elements in the inclusive index range [start, stop], newest first.
// Malformed elements are skipped.
func (s *Store) Range(key string, start, stop int) []Payload {
	s.mu.RLock()
	list := s.lists[key]
	lo, hi, ok := normalizeRange(len(list), start, stop)
	var raw [][]byte
	if ok {
		raw = make([][]byte, hi-lo+1)
		copy(raw, list[lo:hi+1])
	}
	s.mu.RUnlock()

	out := make([]Payload, 0, len(raw))
	for _, data := range raw {
		if p, ok := s.decode(key, data); ok {
			out = append(out, p)
		}
	}
	return out
}

// SetIndex overwrites the element at index (negative counts from the end).
// It returns false when the list or index does not exist.
func (s *Store) SetIndex(key string, index int, value Payload) (bool, error) {
	data, err := Encode(value)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if index < 0 {
		index += len(list)
	}
	if index < 0 || index >= len(list) {
		return false, nil
	}
	list[index] = data
	return true, nil
}

// Len returns the length of the list at key.
func (s *Store) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lists[key])
}

func (s *Store) pushLocked(key string, data []byte) {
	list := s.lists[key]
	list = append(list, nil)
	copy(list[1:], list)
	list[0] = data
	s.lists[key] = list
}

func (s *Store) trimLocked(key string, start, stop int) {
	list, ok := s.lists[key]
	if !ok {
		return
	}
	lo, hi, ok := normalizeRange(len(list), start, stop)
	if !ok {
		delete(s.lists, key)
		return
	}
	trimmed := make([][]byte, hi-lo+1)
	copy(trimmed, list[lo:hi+1])
	s.lists[key] = trimmed
}

// normalizeRange resolves Redis-style indices against a list of length n.
func normalizeRange(n, start, stop int) (int, int, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
