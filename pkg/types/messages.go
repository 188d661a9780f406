package types

// Every frame is {"event": string, "data": object}.

// Client -> Server
// create_room:
//   room_id: string
//   username: string
//   max_rerolls: number // optional, 0 means server default
//
// join_room:
//   room_id: string
//   username: string
//
// player_ready / start_game / pass_turn:
//   room_id: string
//
// roll_dice:
//   room_id: string
//   held_positions: number[] // die indexes 0..4 to keep

// Server -> Client
// room_joined:
//   room_id: string
//   is_host: boolean
//   config: { max_rerolls: number }
//
// update_room:
//   players: { id, name, is_ready, is_host }[] // turn order, host first
//
// player_status_update:
//   player_id: string
//   is_ready: boolean
//
// game_started:
//   current_turn: string
//   current_player_name: string
//   dice: Face[5]
//   rerolls_left: number
//
// dice_rolled:
//   dice: Face[5]
//   rerolls_left: number
//   player_id: string
//
// turn_change:
//   current_turn: string
//   current_player_name: string
//   last_player_name: string
//   last_player_hand: Face[5]
//   last_player_desc: string
//   rerolls_left: number
//
// game_over:
//   room_id: string
//   results: { place, player_id, name, hand, description, category }[]
//   winner_name: string
//
// host_promoted:
//   is_host: true
//
// kicked_inactive:
//   room_id: string
//
// error:
//   message: string
//
// Face: "A" | "K" | "Q" | "J" | "10♥" | "9♠" | "?" (not rolled yet)
