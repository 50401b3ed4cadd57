package platform

// Package platform contains OS integration glue: filesystem helpers,
// reveal-in-file-manager, and desktop notifications. Everything here is
// best-effort; failures never affect fetch outcomes.
