// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

// Package tlsutil provides the hardened TLS configuration shared by every
// outbound HTTP client and server in councilflow: TLS 1.2 minimum, AEAD
// cipher suites only.
package tlsutil
