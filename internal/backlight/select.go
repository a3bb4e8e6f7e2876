package backlight

// Select resolves the devices an operation acts on. Explicit names are
// reduced to their final path component and returned in order. With no
// names, the device root is enumerated and all controls whether every entry
// is returned or only the first one found.
func (s *Store) Select(names []string, all bool) ([]string, error) {
	if len(names) > 0 {
		devices := make([]string, 0, len(names))
		for _, n := range names {
			devices = append(devices, DeviceName(n))
		}
		return devices, nil
	}

	seq, err := s.Devices()
	if err != nil {
		return nil, err
	}
	var devices []string
	for dev := range seq {
		devices = append(devices, dev)
		if !all {
			break
		}
	}
	return devices, nil
}
