package schema

// Embedded definition schemas. These describe the on-disk YAML shape of
// the declarative definition files, not the in-memory types.

const tasksSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "command"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "command": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "timeout": {"type": "integer", "minimum": 0},
          "log_limit": {
            "type": "object",
            "required": ["type", "value"],
            "properties": {
              "type": {"enum": ["count", "age"]},
              "value": {"type": "integer", "minimum": 1}
            }
          },
          "alerts": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "pattern": {"type": "string"},
                "message": {"type": "string"},
                "severity": {"enum": ["info", "warning", "critical"]},
                "title": {"type": "string"},
                "notify": {"type": "boolean"},
                "on_failure_only": {"type": "boolean"}
              }
            }
          },
          "last_run": {"type": "string"},
          "last_status": {"type": "string"}
        }
      }
    }
  }
}`

const groupsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["groups"],
  "properties": {
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "tasks"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "tasks": {
            "type": "array",
            "items": {"type": "string", "minLength": 1}
          },
          "execution": {"enum": ["serial", "parallel"]},
          "stop_on_error": {"type": "boolean"},
          "schedule": {"type": "string"}
        }
      }
    }
  }
}`
