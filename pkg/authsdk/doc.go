/*
Package authsdk provides a client SDK and the shared wire types for the
session auth service.

# Overview

The service hands out two credentials on login: a short-lived HS256 access
token in the JSON body and a long-lived opaque refresh secret in an HttpOnly
cookie. The SDK mirrors a browser: SDKClient owns a cookie jar holding the
refresh cookie, and Session holds the current access token.

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Create an account
	_, err = client.Register(ctx, authsdk.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	})

	// Log in; rememberMe selects the extended refresh lifetime
	session, err := client.Login(ctx, "alice", "correct-horse-battery", true)

# Automatic Token Refresh

Every Session call checks the access token first. When it is within
RefreshLeeway of expiry the Session posts to /api/auth/refresh, which
rotates the refresh cookie in the jar and returns a new access token.
Concurrent callers share one refresh.

	me, err := session.Me(ctx)
	sessions, err := session.Sessions(ctx)

# Error Handling

Failed calls return *APIError carrying the HTTP status and the stable error
code, or *ValidationError (which wraps an *APIError) when request fields
were rejected. Requests are validated client-side with ValidateLogin and
ValidateRegister before they are sent.

	_, err := client.Login(ctx, "alice", "wrong", false)
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// ask again
	}
	if authsdk.IsAuthError(err) {
		// send the user back to the login screen
	}

The server writes the same *APIError values with WriteError, so both sides
agree on codes and statuses.

# Thread Safety

Sessions are safe for concurrent use. Because the refresh cookie lives in
the SDKClient's jar, each SDKClient represents one end user.

# Logout

	err = session.Logout(ctx)    // this device
	err = session.LogoutAll(ctx) // every device
*/
package authsdk
