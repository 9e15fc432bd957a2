package config

// PathManager centralizes the etcd key layout of the scheduler.
type PathManager struct {
	prefix string
}

func NewPathManager() *PathManager {
	return &PathManager{prefix: "/nexus"}
}

func (pm *PathManager) RoutingPathPrefix() string {
	return pm.prefix + "/routing/"
}

func (pm *PathManager) FmtRoutingPath(sessionId string) string {
	return pm.RoutingPathPrefix() + sessionId
}

func (pm *PathManager) UnassignedPath() string {
	return pm.prefix + "/unassigned"
}
