package services

// SetPasswordCheck replaces the hash comparison used by Login.
func (s *AuthService) SetPasswordCheck(check func(hash, password string) bool) {
	s.checkPassword = check
}
