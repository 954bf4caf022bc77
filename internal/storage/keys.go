package storage

import "fmt"

// Key layout shared by every process. The layout is part of the multi-process
// contract: a worker on one host must read the records another host wrote.
// Region channels embed the turn number so stale workers cannot corrupt the
// current turn's entries.

// GameKey is the root record key for a game.
func GameKey(gameID string) string {
	return fmt.Sprintf("game:%s", gameID)
}

// PlayerKey keys one player slot.
func PlayerKey(gameID string, slot int) string {
	return fmt.Sprintf("game:%s:player:%d", gameID, slot)
}

// ZombieKey keys one zombie entity.
func ZombieKey(gameID string, slot int) string {
	return fmt.Sprintf("game:%s:zombie:%d", gameID, slot)
}

// HostKey keys the hidden host record.
func HostKey(gameID string) string {
	return fmt.Sprintf("game:%s:host", gameID)
}

// RegionKey keys the per-(turn, region) channel.
func RegionKey(gameID string, turn, region int) string {
	return fmt.Sprintf("game:%s:region:%d:%d", gameID, turn, region)
}

// DeadlineKey keys the persisted turn deadline.
func DeadlineKey(gameID string) string {
	return fmt.Sprintf("game:%s:turnEndTime", gameID)
}

// LockKey namespaces the resolution lease per game.
func LockKey(gameID string) string {
	return fmt.Sprintf("lock:game:%s", gameID)
}
