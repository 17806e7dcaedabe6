/*
Package ssoclient is embedded by client applications of the SSO auth server.

A Client checks whether the current browser holds a valid token, re-authenticates silently
through a hidden frame of the auth server, protects routes and attaches bearer tokens to API
calls, refreshing and retrying once when a call answers 401.

The browser is abstracted by Host: the page location and navigation (Browser), hidden frames
(Frames), the window message channel (messaging.Bus) and the durable and per-tab storage
(storage.KV). URLBrowser and HTTPFrames implement the browser side for headless use, for
example in a Go service that signs in against the auth server with a cookie jar.

Services that only need to accept tokens use RequireBearer, optionally with a Verifier built
from the auth server's published key set (see Discover and NewRemoteVerifier).
*/
package ssoclient
