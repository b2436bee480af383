package challenge

import "github.com/tturner/labcheck/internal/schema"

// The schema checks shape and value types only. Absent keys decode to zero
// values and are reported by the validator next to every other problem.
// Extra properties are allowed so documents from newer issuers still load.
const challengeSchemaSource = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "labcheck challenge",
  "type": "object",
  "properties": {
    "challenge_id": {"type": "string"},
    "week": {"type": "integer"},
    "student_id": {"type": "string"},
    "issued_at": {"type": "string"},
    "expires_at": {"type": "string"},
    "seed": {"type": "string"},
    "token": {"type": "string"},
    "ports": {
      "type": "object",
      "additionalProperties": {"type": "integer"}
    },
    "requirements": {
      "type": "object",
      "properties": {
        "min_http_requests": {"type": "integer"},
        "min_distinct_backends": {"type": "integer"},
        "dns_query_name": {"type": "string"},
        "http_header_name": {"type": "string"},
        "require_tcp_handshake": {"type": "boolean"}
      }
    },
    "signature": {"type": "string"}
  }
}`

var challengeSchema = schema.MustCompile("challenge.schema.json", challengeSchemaSource)
