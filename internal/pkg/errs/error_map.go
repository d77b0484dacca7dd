/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
error payloads sent to clients and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling and Validation Errors
	ErrInvalidParams:      {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat:  {Code: ErrInvalidJSONFormat, Message: "Unsupported message format."},
	ErrUnknownMessageType: {Code: ErrUnknownMessageType, Message: "Unknown message type: %s."},
	ErrRateLimitExceeded:  {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidNickname:    {Code: ErrInvalidNickname, Message: "Nickname must be 3 to 20 characters."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be at least 4 characters."},
	ErrMessageTooLong:     {Code: ErrMessageTooLong, Message: "Message is too long."},

	// 2xxx: Room Lifecycle and Membership Errors
	ErrRoomNotFound:   {Code: ErrRoomNotFound, Message: "Room not found."},
	ErrRoomFull:       {Code: ErrRoomFull, Message: "This room is full."},
	ErrAlreadyStarted: {Code: ErrAlreadyStarted, Message: "The game has already started."},
	ErrAlreadyInRoom:  {Code: ErrAlreadyInRoom, Message: "You are already in a room."},
	ErrAlreadyMember:  {Code: ErrAlreadyMember, Message: "You are already a member of this room."},
	ErrNotInRoom:      {Code: ErrNotInRoom, Message: "You are not in a room."},
	ErrWrongPassword:  {Code: ErrWrongPassword, Message: "Incorrect room password."},
	ErrNotRoomMember:  {Code: ErrNotRoomMember, Message: "You were not in this room."},
	ErrNameTaken:      {Code: ErrNameTaken, Message: "A player with this name already exists."},

	// 3xxx: User, Session, and Security Errors
	ErrNotAuthenticated:   {Code: ErrNotAuthenticated, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect nickname or password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Nickname is already taken."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found."},
	ErrSessionKicked:      {Code: ErrSessionKicked, Message: "You were signed in on another device."},
	ErrNotAdmin:           {Code: ErrNotAdmin, Message: "You do not have administrator rights."},

	// 4xxx: Game State Machine Errors
	ErrNotCreator:       {Code: ErrNotCreator, Message: "Only the room creator can start the game."},
	ErrNotEnoughPlayers: {Code: ErrNotEnoughPlayers, Message: "Not enough players to start the game."},
	ErrGameNotFound:     {Code: ErrGameNotFound, Message: "No game is running in this room."},
	ErrInvalidAction:    {Code: ErrInvalidAction, Message: "This action is not allowed right now."},
	ErrUnknownEffect:    {Code: ErrUnknownEffect, Message: "Unknown nickname effect."},
	ErrNotEnoughCoins:   {Code: ErrNotEnoughCoins, Message: "Not enough coins."},
	ErrEffectOwned:      {Code: ErrEffectOwned, Message: "You already own this effect."},
	ErrBotNotFound:      {Code: ErrBotNotFound, Message: "Bot not found."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorage: {Code: ErrStorage, Message: "A storage error occurred. Please try again.", Status: http.StatusInternalServerError},
}
