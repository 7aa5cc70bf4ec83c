package controller

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/gosnmp/gosnmp"
)

// Switched-outlet control and bank metering OIDs for rack PDUs in the APC
// rPDU2 family. Metering is bank-level: current in tenths of amps, power
// in hundredths of kW.
const (
	oidOutletControl = ".1.3.6.1.4.1.318.1.1.26.9.2.3.1.5"
	oidBankCurrent   = ".1.3.6.1.4.1.318.1.1.26.8.3.1.5"
	oidBankPower     = ".1.3.6.1.4.1.318.1.1.26.6.3.1.7"
	oidSysUpTime     = ".1.3.6.1.2.1.1.3.0"

	outletCommandOn  = 1
	outletCommandOff = 2

	defaultCommunity = "private"
)

// pduAdapter controls managed PDUs over SNMP. Real on/off per outlet,
// bank-level metering.
type pduAdapter struct {
	timeout time.Duration
	port    uint16
	logger  logger.Logger
}

func newPDUAdapter(cfg Config, log logger.Logger) Adapter {
	return &pduAdapter{
		timeout: cfg.readTimeout(),
		port:    cfg.snmpPort(),
		logger:  log,
	}
}

func (a *pduAdapter) connect(ctx context.Context, station *bench.Station) (*gosnmp.GoSNMP, error) {
	errFactory := errors.New()

	host := station.Address
	port := a.port
	if h, p, err := net.SplitHostPort(station.Address); err == nil {
		if parsed, err := strconv.ParseUint(p, 10, 16); err == nil {
			host = h
			port = uint16(parsed)
		}
	}

	community := station.Community
	if community == "" {
		community = defaultCommunity
	}

	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   a.timeout,
		Retries:   1,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return nil, errFactory.Wrap(ErrSNMPConnect, err)
	}

	return client, nil
}

func (a *pduAdapter) setOutlet(ctx context.Context, station *bench.Station, outlet *bench.Outlet, command int) error {
	errFactory := errors.New()

	client, err := a.connect(ctx, station)
	if err != nil {
		return err
	}
	defer client.Conn.Close()

	oid := fmt.Sprintf("%s.%d", oidOutletControl, outlet.Channel)
	_, err = client.Set([]gosnmp.SnmpPDU{{
		Name:  oid,
		Type:  gosnmp.Integer,
		Value: command,
	}})
	if err != nil {
		return errFactory.Wrap(ErrSNMPOperation, err)
	}

	return nil
}

func (a *pduAdapter) TurnOn(ctx context.Context, station *bench.Station, outlet *bench.Outlet) error {
	if err := a.setOutlet(ctx, station, outlet, outletCommandOn); err != nil {
		return err
	}

	a.logger.Info().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("PDU outlet energized")

	return nil
}

func (a *pduAdapter) TurnOff(ctx context.Context, station *bench.Station, outlet *bench.Outlet) {
	if err := a.setOutlet(ctx, station, outlet, outletCommandOff); err != nil {
		a.logger.Error().
			Err(err).
			Str("station", station.Name).
			Int("channel", outlet.Channel).
			Msg("Failed to turn off PDU outlet")
		return
	}

	a.logger.Info().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("PDU outlet de-energized")
}

func (a *pduAdapter) ReadInstant(ctx context.Context, station *bench.Station, outlet *bench.Outlet) (bench.Sample, error) {
	errFactory := errors.New()

	client, err := a.connect(ctx, station)
	if err != nil {
		return bench.Sample{}, err
	}
	defer client.Conn.Close()

	currentOID := fmt.Sprintf("%s.%d", oidBankCurrent, outlet.Channel)
	powerOID := fmt.Sprintf("%s.%d", oidBankPower, outlet.Channel)

	result, err := client.Get([]string{currentOID, powerOID})
	if err != nil {
		return bench.Sample{}, errFactory.Wrap(ErrSNMPOperation, err)
	}
	if len(result.Variables) < 2 {
		return bench.Sample{}, errFactory.WithData(ErrBadResponse, "short SNMP response")
	}

	amps := float64(gosnmp.ToBigInt(result.Variables[0].Value).Int64()) / 10
	watts := float64(gosnmp.ToBigInt(result.Variables[1].Value).Int64()) * 10

	return bench.Sample{
		Watts: bench.Float64Ptr(watts),
		Amps:  bench.Float64Ptr(amps),
		Raw:   []byte(fmt.Sprintf(`{"bank_current":%s,"bank_power":%s}`, currentOID, powerOID)),
	}, nil
}

func (a *pduAdapter) HealthCheck(ctx context.Context, station *bench.Station) bench.Health {
	client, err := a.connect(ctx, station)
	if err != nil {
		return bench.Health{OK: false, Details: err.Error()}
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysUpTime})
	if err != nil {
		return bench.Health{OK: false, Details: err.Error()}
	}
	if len(result.Variables) == 0 {
		return bench.Health{OK: false, Details: "empty SNMP response"}
	}

	uptime := gosnmp.ToBigInt(result.Variables[0].Value).Int64()

	return bench.Health{OK: true, Details: fmt.Sprintf("pdu up %d ticks", uptime)}
}
