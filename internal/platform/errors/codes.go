// Package errors provides structured error handling for the turn engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors: malformed input or authorization violations.
	CodeInvalidRegion       Code = "ACTION_INVALID_REGION"
	CodeInvalidResponse     Code = "ACTION_INVALID_RESPONSE"
	CodeInvalidItem         Code = "ACTION_INVALID_ITEM"
	CodeInvalidActionKind   Code = "ACTION_INVALID_KIND"
	CodeActorNotInGame      Code = "ACTION_ACTOR_NOT_IN_GAME"
	CodeActorNotHost        Code = "ACTION_ACTOR_NOT_HOST"
	CodeItemNotOwned        Code = "ITEM_NOT_OWNED"
	CodeTargetNotInRegion   Code = "TARGET_NOT_IN_REGION"
	CodeReceiverUnavailable Code = "ITEM_RECEIVER_UNAVAILABLE"
	CodeZombieNotInGame     Code = "HOST_ZOMBIE_NOT_IN_GAME"
	CodeTargetNotInGame     Code = "TARGET_NOT_IN_GAME"
	CodeMessageEmpty        Code = "CHAT_MESSAGE_EMPTY"
	CodeGraffitiIndex       Code = "GRAFFITI_INDEX_OUT_OF_RANGE"
	CodeMatchPlayerCount    Code = "MATCH_PLAYER_COUNT"
	CodeMatchRegionCount    Code = "MATCH_REGION_COUNT"

	// State-conflict errors: semantically invalid given current entity state.
	CodeGameFinished      Code = "GAME_FINISHED"
	CodeActorInactive     Code = "ACTOR_NOT_ACTIVE"
	CodeRunawayExhausted  Code = "RESPONSE_RUNAWAY_EXHAUSTED"
	CodeSpeechForbidden   Code = "CHAT_SPEECH_FORBIDDEN"
	CodeInfectUnavailable Code = "HOST_INFECT_UNAVAILABLE"
	CodeTargetNotAlive    Code = "TARGET_NOT_ALIVE"
	CodeTargetNotZombie   Code = "TARGET_NOT_ZOMBIE"
	CodeTargetNotInfected Code = "TARGET_NOT_INFECTED"
	CodeTargetInfected    Code = "TARGET_ALREADY_INFECTED"
	CodeGraffitiErased    Code = "GRAFFITI_ALREADY_ERASED"

	// Lock errors: transient, relevant only to resolution scheduling.
	CodeLockContention Code = "LOCK_CONTENTION"

	// Missing-entity errors: referenced record absent from the store.
	CodeNotFound       Code = "NOT_FOUND"
	CodeGameNotFound   Code = "GAME_NOT_FOUND"
	CodePlayerNotFound Code = "PLAYER_NOT_FOUND"
	CodeZombieNotFound Code = "ZOMBIE_NOT_FOUND"
	CodeHostNotFound   Code = "HOST_NOT_FOUND"
)

// Class groups codes into the engine's error taxonomy. Callers branch on the
// class, never on individual codes, when deciding retry and surfacing behavior.
type Class int

const (
	ClassUnknown Class = iota
	// ClassValidation rejects malformed input or authorization violations
	// before any mutation is performed.
	ClassValidation
	// ClassStateConflict rejects operations that are semantically invalid
	// for the current entity state. No mutation is performed.
	ClassStateConflict
	// ClassLockContention marks transient lease-acquisition failures.
	ClassLockContention
	// ClassMissingEntity marks absent records; fatal to the single call only.
	ClassMissingEntity
)

// ErrorClass returns the taxonomy class for a code.
func (c Code) ErrorClass() Class {
	switch c {
	case CodeInvalidRegion,
		CodeInvalidResponse,
		CodeInvalidItem,
		CodeInvalidActionKind,
		CodeActorNotInGame,
		CodeActorNotHost,
		CodeItemNotOwned,
		CodeTargetNotInRegion,
		CodeReceiverUnavailable,
		CodeZombieNotInGame,
		CodeTargetNotInGame,
		CodeMessageEmpty,
		CodeGraffitiIndex,
		CodeMatchPlayerCount,
		CodeMatchRegionCount:
		return ClassValidation

	case CodeGameFinished,
		CodeActorInactive,
		CodeRunawayExhausted,
		CodeSpeechForbidden,
		CodeInfectUnavailable,
		CodeTargetNotAlive,
		CodeTargetNotZombie,
		CodeTargetNotInfected,
		CodeTargetInfected,
		CodeGraffitiErased:
		return ClassStateConflict

	case CodeLockContention:
		return ClassLockContention

	case CodeNotFound,
		CodeGameNotFound,
		CodePlayerNotFound,
		CodeZombieNotFound,
		CodeHostNotFound:
		return ClassMissingEntity

	default:
		return ClassUnknown
	}
}

// GRPCCode maps domain codes to gRPC status codes for the transport layer.
func (c Code) GRPCCode() codes.Code {
	switch c.ErrorClass() {
	case ClassValidation:
		return codes.InvalidArgument
	case ClassStateConflict:
		return codes.FailedPrecondition
	case ClassLockContention:
		return codes.Aborted
	case ClassMissingEntity:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
