package maxsize

// Policy triggers eviction when the cache grows past MaxBytes.
// A MaxBytes of zero or less means no limit.
type Policy struct {
	MaxBytes int64
}

func (m *Policy) BytesToFree(currentSize int64) (int64, error) {
	if m.MaxBytes <= 0 {
		return 0, nil
	}
	if currentSize > m.MaxBytes {
		return currentSize - m.MaxBytes, nil
	}
	return 0, nil
}
