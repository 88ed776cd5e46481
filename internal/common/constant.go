package common

// AccessTokenCookieName is the cookie that carries the application access
// token issued after a successful login.
const AccessTokenCookieName = "access_token"
