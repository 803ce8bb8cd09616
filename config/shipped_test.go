package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/config"
)

var _ = Describe("Shipped configuration files", func() {
	load := func(name string) *config.Config {
		cfg, err := config.NewLoader(name, ".").Load()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	It("should load the gateway file", func() {
		cfg := load("gateway")
		Expect(cfg.Server.Environment).To(Equal(config.EnvDev))
		Expect(cfg.Server.Address).To(Equal(":9999"))
		Expect(cfg.Registry.Instances).To(HaveLen(2))
		Expect(cfg.Channel.Type).To(Equal(config.ChannelRedis))
	})

	It("should load the reservation service file", func() {
		cfg := load("reservation-service")
		Expect(cfg.Server.Address).To(Equal(":8000"))
		Expect(cfg.Channel.Type).To(Equal(config.ChannelRedis))
		Expect(cfg.Channel.Destination).To(Equal("reservations"))
		Expect(cfg.ConfigServer.URL).To(Equal("http://localhost:8888"))
		Expect(cfg.Seed.Reservations).To(ContainElement("Vikash"))
	})

	It("should load the config server file", func() {
		cfg := load("config-server")
		Expect(cfg.Server.Address).To(Equal(":8888"))
		Expect(cfg.ConfigServer.Directory).To(Equal("./config-repo"))
	})

	It("should publish the gateway and reservation service on the same channel", func() {
		gateway, service := load("gateway"), load("reservation-service")
		Expect(gateway.Channel).To(Equal(service.Channel))
		Expect(gateway.Redis.Address).To(Equal(service.Redis.Address))
	})
})
