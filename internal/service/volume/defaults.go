package volume

// Built-in payloads for first-run seeding. The reconciler prefers the example
// files shipped inside the installation's data directory; these fallbacks
// cover files upstream does not ship an example for.
const (
	defaultServerSettings = `{
  "name": "Factorio Headless Server",
  "description": "A Factorio headless server managed in a container",
  "tags": [],
  "max_players": 0,
  "visibility": {
    "public": false,
    "lan": true
  },
  "username": "",
  "password": "",
  "token": "",
  "game_password": "",
  "require_user_verification": true,
  "max_upload_in_kilobytes_per_second": 0,
  "max_upload_slots": 5,
  "minimum_latency_in_ticks": 0,
  "max_heartbeats_per_second": 60,
  "ignore_player_limit_for_returning_players": false,
  "allow_commands": "admins-only",
  "autosave_interval": 10,
  "autosave_slots": 5,
  "afk_autokick_interval": 0,
  "auto_pause": true,
  "only_admins_can_pause_the_game": true,
  "autosave_only_on_server": true,
  "non_blocking_saving": false
}
`

	defaultWhitelist = "[]\n"

	defaultBanlist = "[]\n"

	defaultAdminlist = "[]\n"

	defaultMapGenSettings = `{
  "terrain_segmentation": 1,
  "water": 1,
  "width": 0,
  "height": 0,
  "starting_area": 1,
  "peaceful_mode": false,
  "autoplace_controls": {}
}
`

	defaultMapSettings = `{
  "difficulty_settings": {
    "technology_price_multiplier": 1,
    "spoil_time_modifier": 1
  },
  "pollution": {
    "enabled": true
  },
  "enemy_evolution": {
    "enabled": true
  },
  "enemy_expansion": {
    "enabled": true
  }
}
`

	defaultBaseConfig = `[path]
read-data=__PATH__executable__/../../data
write-data=__PATH__executable__/../..

[other]
check-updates=false
`
)
