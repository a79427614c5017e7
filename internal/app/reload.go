package app

import (
	"context"
	"strings"
	"time"

	"notifyd/internal/config"
	logx "notifyd/pkg/logx"
)

// reloadLoop applies validated config updates while the daemon runs.
// Hot-reloadable: logging, email policy, scan windows/interval,
// scheduler knobs. Storage and HTTP changes need a restart and only
// log a warning.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				lastApplied = newCfg
				continue
			}
			lastApplied = newCfg
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Debug("config change summary", fields...)

			for _, s := range sections {
				if s == "storage" || s == "http" {
					a.log.Warn("restart required for this section to take effect", logx.String("section", s))
				}
			}

			a.logs.Apply(mapLogging(newCfg))

			if mailCfg, err := mapMail(newCfg); err != nil {
				a.log.Warn("invalid email config; keeping previous", logx.Err(err))
			} else {
				a.mailer.Apply(mailCfg)
			}

			if notifyCfg, interval, err := mapNotify(newCfg); err != nil {
				a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
			} else {
				a.engine.Apply(notifyCfg)
				if interval != a.scanInterval {
					a.scanInterval = interval
					a.registerScan(interval, a.scanTimeout)
					a.log.Info("scan interval updated", logx.Duration("interval", interval))
				}
			}

			if schedCfg, err := mapScheduler(newCfg); err != nil {
				a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
			} else {
				prevEnabled := a.sched.Enabled()
				a.sched.Apply(schedCfg)
				if schedCfg.DefaultTimeout > 0 {
					a.scanTimeout = schedCfg.DefaultTimeout
				}
				if prevEnabled && !schedCfg.Enabled {
					a.log.Info("scheduler disabled via config")
					stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
					a.sched.Stop(stopCtx)
					cancel()
				} else if !prevEnabled && schedCfg.Enabled {
					a.log.Info("scheduler enabled via config")
					a.sched.Start(ctx)
				}
			}

			if profCfg, err := mapPprof(newCfg); err != nil {
				a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
			} else {
				a.prof.Reconfigure(ctx, profCfg)
			}

			a.log.Info("config reloaded", fields...)
		}
	}
}
