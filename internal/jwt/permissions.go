package jwt

// CheckPermissions succeeds when the required permission is among those
// granted. An empty requirement admits any authenticated caller.
func CheckPermissions(required string, claims *PermissionClaims) error {
	if required == "" {
		return nil
	}

	if !claims.Has(required) {
		return errMissingRequired
	}

	return nil
}
