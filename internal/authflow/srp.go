package authflow

// srpChallenge stands in for USER_SRP_AUTH: rather than perform the
// real SRP exchange, it immediately returns the PASSWORD_VERIFIER
// challenge with placeholder SRP parameters, so a client written
// against the real protocol's two-step handshake still completes — it
// just answers PASSWORD_VERIFIER with a plaintext "PASSWORD" response
// instead of the SRP proof (spec.md §1 non-goal: no real SRP
// cryptography). ADMIN_NO_SRP_AUTH is not this flow's alias — it falls
// under InitiateAuth's unsupported-flow catch-all.
func (s *Service) srpChallenge(clientID string) (*Output, error) {
	sessionToken := s.newSession(pendingChallenge{
		ChallengeName: ChallengePasswordVerifier,
		ClientID:      clientID,
	})
	return &Output{
		ChallengeName: ChallengePasswordVerifier,
		ChallengeParameters: map[string]string{
			"SRP_B":        "0",
			"SALT":         "0",
			"SECRET_BLOCK": s.ids.NewID(),
		},
		Session: sessionToken,
	}, nil
}
