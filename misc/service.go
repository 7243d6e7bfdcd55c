package misc

import (
	"os"
	"strconv"
)

const serviceName = "steward"

func GetServiceName() string {
	if name := os.Getenv("SERVICE_NAME"); name != "" {
		return name
	}
	return serviceName
}

func GetServiceInstance() string {
	if instance := os.Getenv("SERVICE_INSTANCE"); instance != "" {
		return instance
	}
	hostname, err := os.Hostname()
	if err != nil {
		return serviceName + "-" + strconv.Itoa(os.Getpid())
	}
	return hostname
}
