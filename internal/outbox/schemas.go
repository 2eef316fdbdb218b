package outbox

const activityStartedSchema = `{
  "type": "object",
  "title": "ActivityStarted",
  "properties": {
    "activity_id": {"type": "string"},
    "discord_user_id": {"type": "string"},
    "game_id": {"type": "string"},
    "start": {"type": "string", "format": "date-time"},
    "verified": {"type": "boolean"}
  },
  "required": ["activity_id", "discord_user_id", "game_id", "start", "verified"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "discord_user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "discord_user_id", "occurred_at"],
  "additionalProperties": false
}`

const gameCreatedSchema = `{
  "type": "object",
  "title": "GameCreated",
  "properties": {
    "game_id": {"type": "string"},
    "discord_id": {"type": "string"},
    "icon": {"type": "string"},
    "aliases": {"type": "array", "items": {"type": "string"}},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["game_id", "discord_id", "icon", "aliases", "created_at"],
  "additionalProperties": false
}`
